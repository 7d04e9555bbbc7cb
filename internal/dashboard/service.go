package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/imlastrebor/MontSignal/internal/ingest"
	"github.com/imlastrebor/MontSignal/internal/observability"
	"github.com/imlastrebor/MontSignal/internal/storage"
)

// chamonixSource tags the locally maintained Chamonix weather notes that
// share the text-source table with the bulletin texts.
const chamonixSource = "chamonix-meteo"

// Freshness thresholds. Values at exactly the threshold are still fresh.
const (
	bulletinStaleAfter = 18 * time.Hour
	weatherStaleAfter  = 3 * time.Hour
)

// Store is the read surface the dashboard composes from.
type Store interface {
	LatestBulletin(ctx context.Context) (*storage.BulletinRow, error)
	LatestWeatherSnapshot(ctx context.Context) (*storage.WeatherRow, error)
	LatestTextSource(ctx context.Context, source string) (*storage.TextSourceRow, error)
}

type bulletinIngestor interface {
	Run(ctx context.Context, massifID int) (*ingest.BulletinResult, error)
}

type weatherIngestor interface {
	Run(ctx context.Context) (*ingest.WeatherResult, error)
}

// ResponseCache holds an assembled response for a short TTL. A nil Get
// result with a nil error is a miss.
type ResponseCache interface {
	Get(ctx context.Context) (*Response, error)
	Set(ctx context.Context, resp *Response) error
}

// Options configures a dashboard Service.
type Options struct {
	Store     Store
	Bulletins bulletinIngestor
	Weather   weatherIngestor
	Cache     ResponseCache
	Clock     clockwork.Clock
	MassifID  int
	ReadOnly  bool
	Log       *slog.Logger
	Metrics   *observability.Metrics
}

// Service assembles the aggregated dashboard response and re-ingests stale
// sources along the way.
type Service struct {
	store     Store
	bulletins bulletinIngestor
	weather   weatherIngestor
	cache     ResponseCache
	clock     clockwork.Clock
	massifID  int
	readOnly  bool
	log       *slog.Logger
	metrics   *observability.Metrics
}

// NewService constructs a Service from Options. Clock defaults to the real
// clock when unset.
func NewService(opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		store:     opts.Store,
		bulletins: opts.Bulletins,
		weather:   opts.Weather,
		cache:     opts.Cache,
		clock:     clock,
		massifID:  opts.MassifID,
		readOnly:  opts.ReadOnly,
		log:       opts.Log,
		metrics:   opts.Metrics,
	}
}

type latestRows struct {
	bulletin     *storage.BulletinRow
	weather      *storage.WeatherRow
	bulletinText *storage.TextSourceRow
	chamonixText *storage.TextSourceRow
}

// Build assembles the dashboard response. Only the primary bulletin query
// can fail the build; weather and text lookups degrade to nil, and
// re-ingestion errors keep whatever data was already stored. force skips
// the response cache and refreshes both sources unconditionally.
func (s *Service) Build(ctx context.Context, force bool) (*Response, error) {
	if s.cache != nil && !force {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("dashboard cache read failed", "error", err)
		} else if cached != nil {
			s.metrics.DashboardBuilds.WithLabelValues("hit").Inc()
			return cached, nil
		}
	}
	s.metrics.DashboardBuilds.WithLabelValues("miss").Inc()

	rows, err := s.loadRows(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if !s.readOnly && (force || staleTimestamp(bulletinIssuedAt(rows.bulletin), now, bulletinStaleAfter)) {
		if _, err := s.bulletins.Run(ctx, s.massifID); err != nil {
			s.log.Warn("bulletin refresh failed, serving stored data", "error", err)
		} else {
			s.reloadBulletin(ctx, rows)
		}
	}

	if !s.readOnly && (force || staleTimestamp(weatherSnapshotTime(rows.weather), now, weatherStaleAfter)) {
		if _, err := s.weather.Run(ctx); err != nil {
			s.log.Warn("weather refresh failed, serving stored data", "error", err)
		} else {
			s.reloadWeather(ctx, rows)
		}
	}

	resp := assemble(rows)

	if s.cache != nil {
		if err := s.cache.Set(ctx, resp); err != nil {
			s.log.Warn("dashboard cache write failed", "error", err)
		}
	}

	return resp, nil
}

// loadRows runs the four latest-row lookups concurrently. The bulletin
// query is the primary one; the others log and degrade to nil.
func (s *Service) loadRows(ctx context.Context) (*latestRows, error) {
	rows := &latestRows{}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.store.LatestBulletin(gCtx)
		if err != nil {
			return fmt.Errorf("loading latest bulletin: %w", err)
		}
		rows.bulletin = b
		return nil
	})
	g.Go(func() error {
		w, err := s.store.LatestWeatherSnapshot(gCtx)
		if err != nil {
			s.log.Warn("weather lookup failed", "error", err)
			return nil
		}
		rows.weather = w
		return nil
	})
	g.Go(func() error {
		t, err := s.store.LatestTextSource(gCtx, ingest.BulletinSource)
		if err != nil {
			s.log.Warn("bulletin text lookup failed", "error", err)
			return nil
		}
		rows.bulletinText = t
		return nil
	})
	g.Go(func() error {
		t, err := s.store.LatestTextSource(gCtx, chamonixSource)
		if err != nil {
			s.log.Warn("chamonix text lookup failed", "error", err)
			return nil
		}
		rows.chamonixText = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *Service) reloadBulletin(ctx context.Context, rows *latestRows) {
	if b, err := s.store.LatestBulletin(ctx); err != nil {
		s.log.Warn("bulletin re-read after refresh failed", "error", err)
	} else if b != nil {
		rows.bulletin = b
	}
	if t, err := s.store.LatestTextSource(ctx, ingest.BulletinSource); err != nil {
		s.log.Warn("bulletin text re-read after refresh failed", "error", err)
	} else if t != nil {
		rows.bulletinText = t
	}
}

func (s *Service) reloadWeather(ctx context.Context, rows *latestRows) {
	if w, err := s.store.LatestWeatherSnapshot(ctx); err != nil {
		s.log.Warn("weather re-read after refresh failed", "error", err)
	} else if w != nil {
		rows.weather = w
	}
}

func assemble(rows *latestRows) *Response {
	resp := &Response{}

	if b := rows.bulletin; b != nil {
		resp.Avalanche = &Avalanche{
			Source:                b.Source,
			Massif:                b.Massif,
			ValidDate:             b.ValidDate,
			IssuedAt:              b.IssuedAt,
			DangerLevelMin:        b.DangerLevelMin,
			DangerLevelMax:        b.DangerLevelMax,
			DangerLevelByAltitude: b.DangerLevelByAltitude,
			DangerAspects:         b.DangerAspects,
			FrenchText:            b.FrenchText,
			EnglishText:           b.EnglishText,
		}
	}

	if w := rows.weather; w != nil {
		resp.Weather = &Weather{
			Source:           w.Source,
			Location:         w.Location,
			ValidDate:        w.ValidDate,
			SnapshotTime:     w.SnapshotTime,
			Model:            w.Data.Model,
			LowAltitude:      w.Data.LowAltitude,
			HighAltitude:     w.Data.HighAltitude,
			SnowfallRecentCm: w.Data.SnowfallRecentCm,
			Daily:            w.Data.Daily,
			Hourly:           w.Data.Hourly,
		}
	}

	resp.Sources = Sources{
		Bulletin: toSourceText(rows.bulletinText),
		Chamonix: toSourceText(rows.chamonixText),
	}

	if resp.Avalanche != nil && resp.Avalanche.IssuedAt != nil {
		resp.LastUpdated = resp.Avalanche.IssuedAt
	} else if resp.Weather != nil && resp.Weather.SnapshotTime != nil {
		resp.LastUpdated = resp.Weather.SnapshotTime
	}

	return resp
}

func toSourceText(row *storage.TextSourceRow) *SourceText {
	if row == nil {
		return nil
	}
	return &SourceText{
		ValidDate:   row.ValidDate,
		FrenchText:  row.FrenchText,
		EnglishText: row.EnglishText,
	}
}

func bulletinIssuedAt(row *storage.BulletinRow) *string {
	if row == nil {
		return nil
	}
	return row.IssuedAt
}

func weatherSnapshotTime(row *storage.WeatherRow) *string {
	if row == nil {
		return nil
	}
	return row.SnapshotTime
}

// staleTimestamp reports whether ts is older than maxAge relative to now.
// Missing or unparseable timestamps count as stale; exactly maxAge old is
// still fresh.
func staleTimestamp(ts *string, now time.Time, maxAge time.Duration) bool {
	if ts == nil || *ts == "" {
		return true
	}
	parsed, err := parseTimestamp(*ts)
	if err != nil {
		return true
	}
	return now.Sub(parsed) > maxAge
}

func parseTimestamp(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
