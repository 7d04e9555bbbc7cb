package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for bulletins, weather snapshots,
// and the text-source translation cache.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// ---- avalanche_bulletins ----

// UpsertBulletin inserts or replaces the bulletin for its
// (source, massif, valid_date) key. The second writer wins wholesale.
func (r *Repository) UpsertBulletin(ctx context.Context, row BulletinRow) error {
	levelsJSON, err := json.Marshal(row.DangerLevelByAltitude)
	if err != nil {
		return fmt.Errorf("marshaling danger levels for %s: %w", row.ValidDate, err)
	}
	aspectsJSON, err := json.Marshal(row.DangerAspects)
	if err != nil {
		return fmt.Errorf("marshaling danger aspects for %s: %w", row.ValidDate, err)
	}
	rawJSON, err := json.Marshal(row.Raw)
	if err != nil {
		return fmt.Errorf("marshaling raw bulletin for %s: %w", row.ValidDate, err)
	}

	const q = `
		INSERT INTO avalanche_bulletins (
			source, massif, valid_date, issued_at,
			danger_level_min, danger_level_max,
			danger_level_by_altitude, danger_aspects,
			french_text, english_text, raw_json, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (source, massif, valid_date) DO UPDATE
		SET issued_at                = EXCLUDED.issued_at,
		    danger_level_min         = EXCLUDED.danger_level_min,
		    danger_level_max         = EXCLUDED.danger_level_max,
		    danger_level_by_altitude = EXCLUDED.danger_level_by_altitude,
		    danger_aspects           = EXCLUDED.danger_aspects,
		    french_text              = EXCLUDED.french_text,
		    english_text             = EXCLUDED.english_text,
		    raw_json                 = EXCLUDED.raw_json,
		    updated_at               = EXCLUDED.updated_at
	`

	_, err = r.q.Exec(ctx, q,
		row.Source, row.Massif, row.ValidDate, row.IssuedAt,
		row.DangerLevelMin, row.DangerLevelMax,
		levelsJSON, aspectsJSON,
		row.FrenchText, row.EnglishText, rawJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting bulletin for %s: %w", row.ValidDate, err)
	}

	return nil
}

// LatestBulletin returns the most recent bulletin by validity date, then
// creation time. Returns nil, nil when no bulletin exists yet.
func (r *Repository) LatestBulletin(ctx context.Context) (*BulletinRow, error) {
	const q = `
		SELECT id, source, massif, valid_date, issued_at,
		       danger_level_min, danger_level_max,
		       danger_level_by_altitude, danger_aspects,
		       french_text, english_text, raw_json,
		       created_at, updated_at
		FROM avalanche_bulletins
		ORDER BY valid_date DESC, created_at DESC
		LIMIT 1
	`

	var row BulletinRow
	var levelsJSON, aspectsJSON, rawJSON []byte

	err := r.q.QueryRow(ctx, q).Scan(
		&row.ID, &row.Source, &row.Massif, &row.ValidDate, &row.IssuedAt,
		&row.DangerLevelMin, &row.DangerLevelMax,
		&levelsJSON, &aspectsJSON,
		&row.FrenchText, &row.EnglishText, &rawJSON,
		&row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest bulletin: %w", err)
	}

	if err := json.Unmarshal(levelsJSON, &row.DangerLevelByAltitude); err != nil {
		return nil, fmt.Errorf("unmarshaling danger levels: %w", err)
	}
	if err := json.Unmarshal(aspectsJSON, &row.DangerAspects); err != nil {
		return nil, fmt.Errorf("unmarshaling danger aspects: %w", err)
	}
	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &row.Raw); err != nil {
			return nil, fmt.Errorf("unmarshaling raw bulletin: %w", err)
		}
	}

	return &row, nil
}

// ---- weather_snapshots ----

// UpsertWeatherSnapshot inserts or replaces the snapshot for its
// (source, valid_date, location) key.
func (r *Repository) UpsertWeatherSnapshot(ctx context.Context, row WeatherRow) error {
	dataJSON, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("marshaling weather data for %s: %w", row.ValidDate, err)
	}

	const q = `
		INSERT INTO weather_snapshots (source, valid_date, location, snapshot_time, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (source, valid_date, location) DO UPDATE
		SET snapshot_time = EXCLUDED.snapshot_time,
		    data          = EXCLUDED.data,
		    updated_at    = EXCLUDED.updated_at
	`

	if _, err := r.q.Exec(ctx, q, row.Source, row.ValidDate, row.Location, row.SnapshotTime, dataJSON); err != nil {
		return fmt.Errorf("upserting weather snapshot for %s: %w", row.ValidDate, err)
	}

	return nil
}

// LatestWeatherSnapshot returns the most recent snapshot, or nil, nil when
// none exists.
func (r *Repository) LatestWeatherSnapshot(ctx context.Context) (*WeatherRow, error) {
	const q = `
		SELECT id, source, valid_date, location, snapshot_time, data, created_at, updated_at
		FROM weather_snapshots
		ORDER BY valid_date DESC, created_at DESC
		LIMIT 1
	`

	var row WeatherRow
	var dataJSON []byte

	err := r.q.QueryRow(ctx, q).Scan(
		&row.ID, &row.Source, &row.ValidDate, &row.Location, &row.SnapshotTime,
		&dataJSON, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest weather snapshot: %w", err)
	}

	if err := json.Unmarshal(dataJSON, &row.Data); err != nil {
		return nil, fmt.Errorf("unmarshaling weather data: %w", err)
	}

	return &row, nil
}

// ---- text_sources ----

// UpsertTextSource inserts or replaces the text pair for its
// (source, valid_date) key.
func (r *Repository) UpsertTextSource(ctx context.Context, row TextSourceRow) error {
	const q = `
		INSERT INTO text_sources (source, valid_date, french_text, english_text, raw_html, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (source, valid_date) DO UPDATE
		SET french_text  = EXCLUDED.french_text,
		    english_text = EXCLUDED.english_text,
		    raw_html     = COALESCE(EXCLUDED.raw_html, text_sources.raw_html),
		    updated_at   = EXCLUDED.updated_at
	`

	if _, err := r.q.Exec(ctx, q, row.Source, row.ValidDate, row.FrenchText, row.EnglishText, row.RawHTML); err != nil {
		return fmt.Errorf("upserting text source %s/%s: %w", row.Source, row.ValidDate, err)
	}

	return nil
}

// LatestTextSource returns the most recent text pair for the given source,
// or nil, nil when none exists.
func (r *Repository) LatestTextSource(ctx context.Context, source string) (*TextSourceRow, error) {
	const q = `
		SELECT id, source, valid_date, french_text, english_text, raw_html, created_at, updated_at
		FROM text_sources
		WHERE source = $1
		ORDER BY valid_date DESC, created_at DESC
		LIMIT 1
	`

	var row TextSourceRow
	err := r.q.QueryRow(ctx, q, source).Scan(
		&row.ID, &row.Source, &row.ValidDate,
		&row.FrenchText, &row.EnglishText, &row.RawHTML,
		&row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest text source %s: %w", source, err)
	}

	return &row, nil
}

// FindEnglishByFrench looks up a cached translation by exact French text,
// regardless of which source or day produced it. Returns nil, nil on a
// cache miss.
func (r *Repository) FindEnglishByFrench(ctx context.Context, frenchText string) (*string, error) {
	const q = `
		SELECT english_text
		FROM text_sources
		WHERE french_text = $1 AND english_text IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	var english string
	err := r.q.QueryRow(ctx, q, frenchText).Scan(&english)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying translation cache: %w", err)
	}

	return &english, nil
}
