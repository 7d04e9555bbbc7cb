package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/imlastrebor/MontSignal/internal/bulletin"
	"github.com/imlastrebor/MontSignal/internal/observability"
	"github.com/imlastrebor/MontSignal/internal/storage"
	"github.com/imlastrebor/MontSignal/internal/translate"
)

// BulletinSource is the natural-key source tag for avalanche bulletin rows.
const BulletinSource = "meteo-france-bra"

type bulletinFetcher interface {
	FetchAndParse(ctx context.Context, massifID int) (*bulletin.Bulletin, error)
}

type translator interface {
	Translate(ctx context.Context, frenchText, source, validDate string) (translate.Result, error)
}

// BulletinStore is the persistence surface bulletin ingestion writes to.
type BulletinStore interface {
	UpsertBulletin(ctx context.Context, row storage.BulletinRow) error
	UpsertTextSource(ctx context.Context, row storage.TextSourceRow) error
}

// BulletinResult reports one completed ingestion run.
type BulletinResult struct {
	Source            string `json:"source"`
	Massif            string `json:"massif"`
	ValidDate         string `json:"validDate"`
	DangerLevelMax    *int   `json:"dangerLevelMax"`
	TranslationCached bool   `json:"translationCached"`
}

// BulletinIngestor fetches, normalizes, translates, and persists one
// avalanche bulletin per run.
type BulletinIngestor struct {
	fetcher    bulletinFetcher
	translator translator
	store      BulletinStore
	metrics    *observability.Metrics
	log        *slog.Logger
}

// NewBulletinIngestor wires the bulletin pipeline stages together.
func NewBulletinIngestor(fetcher bulletinFetcher, tr translator, store BulletinStore, metrics *observability.Metrics, log *slog.Logger) *BulletinIngestor {
	return &BulletinIngestor{
		fetcher:    fetcher,
		translator: tr,
		store:      store,
		metrics:    metrics,
		log:        log,
	}
}

// Run executes one full ingestion cycle for the given massif. Fetch, parse,
// translation, and both upserts are all fatal: a run either lands the
// bulletin and its text pair or reports an error.
func (in *BulletinIngestor) Run(ctx context.Context, massifID int) (*BulletinResult, error) {
	parsed, err := in.fetcher.FetchAndParse(ctx, massifID)
	if err != nil {
		in.metrics.IngestRuns.WithLabelValues("bulletin", "error").Inc()
		return nil, fmt.Errorf("ingesting bulletin: %w", err)
	}

	validDate := toDateOnly(parsed.ValidUntil)
	if validDate == "" {
		validDate = toDateOnly(parsed.ValidFrom)
	}

	frenchText := combinedText(parsed.Summary)

	translation, err := in.translator.Translate(ctx, frenchText, BulletinSource, validDate)
	if err != nil {
		in.metrics.IngestRuns.WithLabelValues("bulletin", "error").Inc()
		return nil, fmt.Errorf("ingesting bulletin: %w", err)
	}

	dangerByAltitude := make(map[string]*int, len(parsed.RiskBands))
	for _, band := range parsed.RiskBands {
		dangerByAltitude[band.Label] = band.Level
	}

	row := storage.BulletinRow{
		Source:                BulletinSource,
		Massif:                parsed.MassifName,
		ValidDate:             validDate,
		IssuedAt:              nonEmpty(parsed.IssuedAt),
		DangerLevelMin:        parsed.RiskMin,
		DangerLevelMax:        parsed.RiskMax,
		DangerLevelByAltitude: dangerByAltitude,
		DangerAspects:         map[string][]string{"all": parsed.Aspects},
		FrenchText:            nonEmpty(frenchText),
		EnglishText:           nonEmpty(translation.EnglishText),
		Raw:                   parsed.Raw,
	}
	if err := in.store.UpsertBulletin(ctx, row); err != nil {
		in.metrics.IngestRuns.WithLabelValues("bulletin", "error").Inc()
		return nil, fmt.Errorf("ingesting bulletin: %w", err)
	}

	textRow := storage.TextSourceRow{
		Source:      BulletinSource,
		ValidDate:   validDate,
		FrenchText:  nonEmpty(frenchText),
		EnglishText: nonEmpty(translation.EnglishText),
		RawHTML:     nonEmpty(parsed.RawXML),
	}
	if err := in.store.UpsertTextSource(ctx, textRow); err != nil {
		in.metrics.IngestRuns.WithLabelValues("bulletin", "error").Inc()
		return nil, fmt.Errorf("ingesting bulletin: %w", err)
	}

	in.metrics.IngestRuns.WithLabelValues("bulletin", "success").Inc()
	in.log.Info("bulletin ingested",
		"massif", parsed.MassifName,
		"validDate", validDate,
		"dangerLevelMax", derefInt(parsed.RiskMax),
		"translationCached", translation.Cached)

	return &BulletinResult{
		Source:            BulletinSource,
		Massif:            parsed.MassifName,
		ValidDate:         validDate,
		DangerLevelMax:    parsed.RiskMax,
		TranslationCached: translation.Cached,
	}, nil
}

// combinedText prefers the provider's combined summary, otherwise joins the
// natural and accidental descriptions.
func combinedText(s bulletin.Summary) string {
	if s.Combined != nil && strings.TrimSpace(*s.Combined) != "" {
		return strings.TrimSpace(*s.Combined)
	}
	var parts []string
	if s.Natural != nil && strings.TrimSpace(*s.Natural) != "" {
		parts = append(parts, strings.TrimSpace(*s.Natural))
	}
	if s.Accidental != nil && strings.TrimSpace(*s.Accidental) != "" {
		parts = append(parts, strings.TrimSpace(*s.Accidental))
	}
	return strings.Join(parts, "\n")
}

// toDateOnly reduces an upstream timestamp to its calendar date. Values
// that do not parse pass through verbatim so the natural key still lands
// and the raw value stays visible.
func toDateOnly(raw string) string {
	if raw == "" {
		return ""
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return raw
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
