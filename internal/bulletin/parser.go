package bulletin

import (
	"errors"
	"fmt"
	"slices"

	"github.com/clbanning/mxj/v2"

	"github.com/imlastrebor/MontSignal/internal/coerce"
)

// compassAspects is the full set of selectable slope exposures, in the
// order the provider lists them.
var compassAspects = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func init() {
	// Merge XML attributes into the tree under their plain names, the way
	// the provider's schema expects them to be read.
	mxj.SetAttrPrefix("")
}

// Parse converts raw BRA markup into its canonical form. A missing
// BULLETINS_NEIGE_AVALANCHE root aborts parsing; absent or malformed
// individual fields degrade to nil instead.
func Parse(rawXML string) (*Bulletin, error) {
	tree, err := mxj.NewMapXml([]byte(rawXML))
	if err != nil {
		return nil, fmt.Errorf("parsing bulletin XML: %w", err)
	}

	root, ok := tree["BULLETINS_NEIGE_AVALANCHE"].(map[string]any)
	if !ok {
		return nil, errors.New("unexpected bulletin XML: missing BULLETINS_NEIGE_AVALANCHE root")
	}

	cartouche := child(root, "CARTOUCHERISQUE")
	risque := child(cartouche, "RISQUE")
	pente := child(cartouche, "PENTE")

	altitude := coerce.String(risque["ALTITUDE"])

	var bands []RiskBand
	if level := coerce.Int(risque["RISQUE1"]); level != nil {
		bands = append(bands, RiskBand{
			Label:     bandLabel(coerce.String(risque["LOC1"]), altitude, "<"),
			Level:     level,
			Evolution: coerce.String(risque["EVOLURISQUE1"]),
		})
	}
	if level := coerce.Int(risque["RISQUE2"]); level != nil {
		bands = append(bands, RiskBand{
			Label:     bandLabel(coerce.String(risque["LOC2"]), altitude, ">"),
			Level:     level,
			Evolution: coerce.String(risque["EVOLURISQUE2"]),
		})
	}

	var levels []int
	for _, b := range bands {
		if b.Level != nil {
			levels = append(levels, *b.Level)
		}
	}

	var riskMin *int
	if len(levels) > 0 {
		mn := slices.Min(levels)
		riskMin = &mn
	}

	// An explicit provider maximum wins over the computed one.
	riskMax := coerce.Int(risque["RISQUEMAXI"])
	if riskMax == nil && len(levels) > 0 {
		mx := slices.Max(levels)
		riskMax = &mx
	}

	var aspects []string
	for _, aspect := range compassAspects {
		if coerce.Bool(pente[aspect]) {
			aspects = append(aspects, aspect)
		}
	}

	massifID := MassifIDMontBlanc
	if id := coerce.Int(root["ID"]); id != nil {
		massifID = *id
	}

	massifName := "Mont-Blanc"
	if name := coerce.String(root["MASSIF"]); name != nil {
		massifName = *name
	}

	return &Bulletin{
		MassifID:    massifID,
		MassifName:  massifName,
		IssuedAt:    str(root["DATEBULLETIN"]),
		ValidFrom:   firstStr(root["DATEECHEANCE"], root["DATEVALIDITE"]),
		ValidUntil:  firstStr(root["DATEVALIDITE"], root["DATEECHEANCE"]),
		Amended:     amendedFlag(root["AMENDEMENT"]),
		RiskMin:     riskMin,
		RiskMax:     riskMax,
		RiskBands:   bands,
		RiskComment: coerce.String(risque["COMMENTAIRE"]),
		Aspects:     aspects,
		Summary: Summary{
			Natural:    coerce.String(cartouche["NATUREL"]),
			Accidental: coerce.String(cartouche["ACCIDENTEL"]),
			Combined:   coerce.String(cartouche["RESUME"]),
			J2:         coerce.String(cartouche["RisqueJ2"]),
			J2Comment:  coerce.String(cartouche["CommentaireRisqueJ2"]),
		},
		StabilityText:   coerce.String(child(root, "STABILITE")["TEXTE"]),
		SnowQualityText: snowQualityText(root),
		Raw:             root,
		RawXML:          rawXML,
	}, nil
}

// bandLabel synthesizes a band label when the provider gives no explicit
// location: "<ALT"/">ALT" from the altitude threshold, or "all" without one.
func bandLabel(loc, altitude *string, prefix string) string {
	if loc != nil {
		return *loc
	}
	if altitude != nil {
		return prefix + *altitude
	}
	return "all"
}

// snowQualityText walks the historical spellings of the snow-quality
// section, oldest schema last.
func snowQualityText(root map[string]any) *string {
	if s := coerce.String(child(root, "QUALITE")["TEXTE"]); s != nil {
		return s
	}
	neige := child(root, "QUALITE_NEIGE")
	if s := coerce.String(neige["TEXTE"]); s != nil {
		return s
	}
	if s := coerce.String(child(root, "QUALITENEIGE")["TEXTE"]); s != nil {
		return s
	}
	if s := coerce.String(neige["Texte"]); s != nil {
		return s
	}
	return coerce.String(root["QUALITE_NEIGE"])
}

// amendedFlag follows the provider's own convention for AMENDEMENT: only a
// boolean true or the exact string "true" count.
func amendedFlag(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	}
	return false
}

// child returns the named sub-map, or an empty map so callers can index
// without presence checks.
func child(m map[string]any, key string) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	if c, ok := m[key].(map[string]any); ok {
		return c
	}
	return map[string]any{}
}

func str(v any) string {
	if s := coerce.String(v); s != nil {
		return *s
	}
	return ""
}

func firstStr(values ...any) string {
	for _, v := range values {
		if s := coerce.String(v); s != nil {
			return *s
		}
	}
	return ""
}
