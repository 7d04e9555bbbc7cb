package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/imlastrebor/MontSignal/internal/observability"
	"github.com/imlastrebor/MontSignal/internal/storage"
	"github.com/imlastrebor/MontSignal/internal/weather"
)

type snapshotFetcher interface {
	Snapshot(ctx context.Context) (*weather.Snapshot, error)
}

// WeatherStore is the persistence surface weather ingestion writes to.
type WeatherStore interface {
	UpsertWeatherSnapshot(ctx context.Context, row storage.WeatherRow) error
}

// WeatherResult reports one completed snapshot ingestion.
type WeatherResult struct {
	Source       string `json:"source"`
	Location     string `json:"location"`
	ValidDate    string `json:"validDate"`
	SnapshotTime string `json:"snapshotTime"`
}

// WeatherIngestor fetches a merged two-point forecast snapshot and persists
// it under its natural key.
type WeatherIngestor struct {
	fetcher snapshotFetcher
	store   WeatherStore
	metrics *observability.Metrics
	log     *slog.Logger
}

// NewWeatherIngestor wires the weather pipeline stages together.
func NewWeatherIngestor(fetcher snapshotFetcher, store WeatherStore, metrics *observability.Metrics, log *slog.Logger) *WeatherIngestor {
	return &WeatherIngestor{fetcher: fetcher, store: store, metrics: metrics, log: log}
}

// Run executes one snapshot ingestion cycle. Fetch and upsert are both
// fatal.
func (in *WeatherIngestor) Run(ctx context.Context) (*WeatherResult, error) {
	snap, err := in.fetcher.Snapshot(ctx)
	if err != nil {
		in.metrics.IngestRuns.WithLabelValues("weather", "error").Inc()
		return nil, fmt.Errorf("ingesting weather: %w", err)
	}

	row := storage.WeatherRow{
		Source:       snap.Source,
		ValidDate:    snap.ValidDate,
		Location:     snap.Location,
		SnapshotTime: nonEmpty(snap.Timestamp),
		Data:         snap.Data,
	}
	if err := in.store.UpsertWeatherSnapshot(ctx, row); err != nil {
		in.metrics.IngestRuns.WithLabelValues("weather", "error").Inc()
		return nil, fmt.Errorf("ingesting weather: %w", err)
	}

	in.metrics.IngestRuns.WithLabelValues("weather", "success").Inc()
	in.log.Info("weather snapshot ingested",
		"location", snap.Location,
		"validDate", snap.ValidDate,
		"snapshotTime", snap.Timestamp)

	return &WeatherResult{
		Source:       snap.Source,
		Location:     snap.Location,
		ValidDate:    snap.ValidDate,
		SnapshotTime: snap.Timestamp,
	}, nil
}
