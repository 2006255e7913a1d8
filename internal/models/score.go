package models

import "strings"

// Dial names one of the six fixed scoreboard dials.
type Dial string

const (
	DialGrowth       Dial = "Growth Impulse"
	DialInflation    Dial = "Inflation Pressure"
	DialLiquidity    Dial = "Liquidity Conditions"
	DialCredit       Dial = "Credit Stress"
	DialValuation    Dial = "Valuation Risk"
	DialRiskAppetite Dial = "Risk Appetite"
)

// DialOrder is the scoreboard display order.
var DialOrder = []Dial{
	DialGrowth,
	DialInflation,
	DialLiquidity,
	DialCredit,
	DialValuation,
	DialRiskAppetite,
}

// ProvenanceKind tags how a dial score was produced.
type ProvenanceKind string

const (
	ProvenanceCalculated ProvenanceKind = "Calculated"
	ProvenanceDefault    ProvenanceKind = "Default"
	ProvenanceError      ProvenanceKind = "Error"
)

// DialScore is a bounded score with its provenance, e.g. "Calculated(hy_spread_current=2.84)".
type DialScore struct {
	Score      float64        `json:"score"`
	Kind       ProvenanceKind `json:"kind"`
	Provenance string         `json:"provenance"`
}

// IsFallback reports whether the score is a default rather than a computation.
func (d DialScore) IsFallback() bool {
	return d.Kind != ProvenanceCalculated
}

// ScoreResult maps every dial to its score. It is recomputed each run.
type ScoreResult map[Dial]DialScore

// ParseDial resolves loose dial text ("**Growth**", "credit stress") to a Dial.
func ParseDial(s string) (Dial, bool) {
	t := strings.ToLower(strings.Trim(strings.TrimSpace(s), "*_ "))
	switch {
	case strings.Contains(t, "growth"):
		return DialGrowth, true
	case strings.Contains(t, "inflation"):
		return DialInflation, true
	case strings.Contains(t, "liquidity"):
		return DialLiquidity, true
	case strings.Contains(t, "credit"):
		return DialCredit, true
	case strings.Contains(t, "valuation"):
		return DialValuation, true
	case strings.Contains(t, "risk appetite"), strings.Contains(t, "appetite"):
		return DialRiskAppetite, true
	default:
		return "", false
	}
}

// ScoreDelta compares a narrative's claimed score with the computed one.
type ScoreDelta struct {
	Dial     Dial    `json:"dial"`
	Claimed  float64 `json:"claimed"`
	Computed float64 `json:"computed"`
	Delta    float64 `json:"delta"`    // Claimed - Computed
	Severity string  `json:"severity"` // "major", "minor" or "ok"
}
