package bulletin

// RiskBand is one danger-level entry tied to an altitude threshold or a
// named zone. Level is nil when the provider omitted it; the parser does
// not enforce the nominal 1–5 range.
type RiskBand struct {
	Label     string  `json:"label"`
	Level     *int    `json:"level"`
	Evolution *string `json:"evolution,omitempty"`
}

// Summary holds the bulletin's free-text risk descriptions.
type Summary struct {
	Natural    *string `json:"natural"`
	Accidental *string `json:"accidental"`
	Combined   *string `json:"combined"`
	J2         *string `json:"j2,omitempty"`
	J2Comment  *string `json:"j2Comment,omitempty"`
}

// Bulletin is the canonical form of one parsed BRA document. Raw keeps the
// full untyped tree and RawXML the original markup for audit.
type Bulletin struct {
	MassifID        int            `json:"massifId"`
	MassifName      string         `json:"massifName"`
	IssuedAt        string         `json:"issuedAt"`
	ValidFrom       string         `json:"validFrom"`
	ValidUntil      string         `json:"validUntil"`
	Amended         bool           `json:"amended"`
	RiskMin         *int           `json:"riskMin"`
	RiskMax         *int           `json:"riskMax"`
	RiskBands       []RiskBand     `json:"riskBands"`
	RiskComment     *string        `json:"riskComment"`
	Aspects         []string       `json:"aspects"`
	Summary         Summary        `json:"summary"`
	StabilityText   *string        `json:"stabilityText,omitempty"`
	SnowQualityText *string        `json:"snowQualityText,omitempty"`
	Raw             map[string]any `json:"-"`
	RawXML          string         `json:"-"`
}
