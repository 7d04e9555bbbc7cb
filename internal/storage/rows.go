package storage

import (
	"time"

	"github.com/imlastrebor/MontSignal/internal/weather"
)

// BulletinRow mirrors one avalanche_bulletins record. ValidDate is the
// natural-key date string; when the upstream validity date could not be
// parsed it holds the literal upstream value.
type BulletinRow struct {
	ID                    int64
	Source                string
	Massif                string
	ValidDate             string
	IssuedAt              *string
	DangerLevelMin        *int
	DangerLevelMax        *int
	DangerLevelByAltitude map[string]*int
	DangerAspects         map[string][]string
	FrenchText            *string
	EnglishText           *string
	Raw                   map[string]any
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// WeatherRow mirrors one weather_snapshots record.
type WeatherRow struct {
	ID           int64
	Source       string
	ValidDate    string
	Location     string
	SnapshotTime *string
	Data         weather.SnapshotData
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TextSourceRow mirrors one text_sources record: a French/English text
// pair for a (source, valid_date), doubling as the translation cache.
type TextSourceRow struct {
	ID          int64
	Source      string
	ValidDate   string
	FrenchText  *string
	EnglishText *string
	RawHTML     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
