package dashboard

import (
	"github.com/imlastrebor/MontSignal/internal/weather"
)

// Avalanche is the bulletin block of the aggregated response.
type Avalanche struct {
	Source                string              `json:"source"`
	Massif                string              `json:"massif"`
	ValidDate             string              `json:"validDate"`
	IssuedAt              *string             `json:"issuedAt"`
	DangerLevelMin        *int                `json:"dangerLevelMin"`
	DangerLevelMax        *int                `json:"dangerLevelMax"`
	DangerLevelByAltitude map[string]*int     `json:"dangerLevelByAltitude"`
	DangerAspects         map[string][]string `json:"dangerAspects"`
	FrenchText            *string             `json:"frenchText"`
	EnglishText           *string             `json:"englishText"`
}

// Weather is the snapshot block of the aggregated response.
type Weather struct {
	Source           string                  `json:"source"`
	Location         string                  `json:"location"`
	ValidDate        string                  `json:"validDate"`
	SnapshotTime     *string                 `json:"snapshotTime"`
	Model            string                  `json:"model"`
	LowAltitude      weather.PointConditions `json:"lowAltitude"`
	HighAltitude     weather.PointConditions `json:"highAltitude"`
	SnowfallRecentCm *float64                `json:"snowfallRecentCm"`
	Daily            weather.DailySeries     `json:"daily"`
	Hourly           weather.HourlySeries    `json:"hourly"`
}

// SourceText is one cached French/English text pair.
type SourceText struct {
	ValidDate   string  `json:"validDate"`
	FrenchText  *string `json:"frenchText"`
	EnglishText *string `json:"englishText"`
}

// Sources groups the cached texts by their upstream source tag.
type Sources struct {
	Bulletin *SourceText `json:"meteo-france-bra"`
	Chamonix *SourceText `json:"chamonix-meteo"`
}

// Response is the full aggregated snapshot served to clients.
type Response struct {
	LastUpdated *string    `json:"lastUpdated"`
	Avalanche   *Avalanche `json:"avalanche"`
	Weather     *Weather   `json:"weather"`
	Sources     Sources    `json:"sources"`
}
