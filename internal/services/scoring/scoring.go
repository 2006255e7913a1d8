// Package scoring provides the six-dial score calculator.
// All functions are stateless and perform no I/O.
package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ternarybob/macrolens/internal/models"
)

// Formula coefficients. Hand-tuned constants with no documented derivation;
// they are fixed rather than configurable.
const (
	neutralScore      = 5.0
	riskAppetiteScore = 7.0

	liquidityNeutralSpread = 4.5  // HY spread at which liquidity is neutral
	liquiditySpreadWeight  = 3.0  // points per doubling of spread
	liquidityRealYieldCap  = 1.5  // real yields above this drain liquidity
	liquidityRealYieldPer  = 2.0  // points per 1% above the cap
	spreadFloor            = 0.01 // avoids log(0)

	valuationNeutralPE = 18.0
	valuationPerPE     = 0.66

	inflationNeutral5y5y = 2.25
	inflationPerPoint    = 10.0

	creditCalmSpread = 3.0
	creditCalmScore  = 2.0
	creditPerPoint   = 1.6

	growthNeutralSlope = 0.50
	growthPerPoint     = 3.5

	riskAppetiteVIXBase = 10.0
	riskAppetitePerVIX  = 0.5

	minScore = 0.0
	maxScore = 10.0
)

// dialSpec is one dial's inputs, formula and fallback.
type dialSpec struct {
	dial     models.Dial
	inputs   []string
	fallback float64
	formula  func(in map[string]float64) float64
}

var dials = []dialSpec{
	{
		dial:     models.DialLiquidity,
		inputs:   []string{models.MetricHYSpreadCurrent, models.MetricRealYield10Y},
		fallback: neutralScore,
		formula: func(in map[string]float64) float64 {
			hy := math.Max(in[models.MetricHYSpreadCurrent], spreadFloor)
			drag := math.Max(0, (in[models.MetricRealYield10Y]-liquidityRealYieldCap)*liquidityRealYieldPer)
			return neutralScore + math.Log2(liquidityNeutralSpread/hy)*liquiditySpreadWeight - drag
		},
	},
	{
		dial:     models.DialValuation,
		inputs:   []string{models.MetricForwardPECurrent},
		fallback: neutralScore,
		formula: func(in map[string]float64) float64 {
			return neutralScore + (in[models.MetricForwardPECurrent]-valuationNeutralPE)*valuationPerPE
		},
	},
	{
		dial:     models.DialInflation,
		inputs:   []string{models.MetricInflation5Y5Y},
		fallback: neutralScore,
		formula: func(in map[string]float64) float64 {
			return neutralScore + (in[models.MetricInflation5Y5Y]-inflationNeutral5y5y)*inflationPerPoint
		},
	},
	{
		dial:     models.DialCredit,
		inputs:   []string{models.MetricHYSpreadCurrent},
		fallback: neutralScore,
		formula: func(in map[string]float64) float64 {
			hy := in[models.MetricHYSpreadCurrent]
			if hy < creditCalmSpread {
				return creditCalmScore
			}
			return creditCalmScore + (hy-creditCalmSpread)*creditPerPoint
		},
	},
	{
		dial:     models.DialGrowth,
		inputs:   []string{models.MetricYield10Y, models.MetricYield2Y},
		fallback: neutralScore,
		formula: func(in map[string]float64) float64 {
			slope := in[models.MetricYield10Y] - in[models.MetricYield2Y]
			return neutralScore + (slope-growthNeutralSlope)*growthPerPoint
		},
	},
	{
		dial:     models.DialRiskAppetite,
		inputs:   []string{models.MetricVIX},
		fallback: riskAppetiteScore,
		formula: func(in map[string]float64) float64 {
			return maxScore - (in[models.MetricVIX]-riskAppetiteVIXBase)*riskAppetitePerVIX
		},
	},
}

// ScoreAll computes every dial independently. A failing dial falls back to its
// default without affecting the others.
func ScoreAll(m models.ExtractedMetrics) models.ScoreResult {
	out := make(models.ScoreResult, len(dials))
	for _, d := range dials {
		out[d.dial] = scoreDial(d, m)
	}
	return out
}

// Score computes a single dial.
func Score(dial models.Dial, m models.ExtractedMetrics) (models.DialScore, bool) {
	for _, d := range dials {
		if d.dial == dial {
			return scoreDial(d, m), true
		}
	}
	return models.DialScore{}, false
}

// Default returns the fallback score of a dial.
func Default(dial models.Dial) float64 {
	if dial == models.DialRiskAppetite {
		return riskAppetiteScore
	}
	return neutralScore
}

func scoreDial(d dialSpec, m models.ExtractedMetrics) (result models.DialScore) {
	defer func() {
		if r := recover(); r != nil {
			result = errorScore(d, fmt.Sprintf("panic: %v", r))
		}
	}()

	in := make(map[string]float64, len(d.inputs))
	var missing []string
	for _, key := range d.inputs {
		v, ok := m.Float(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		in[key] = v
	}
	if len(missing) > 0 {
		return models.DialScore{
			Score:      d.fallback,
			Kind:       models.ProvenanceDefault,
			Provenance: fmt.Sprintf("Default(missing: %s)", strings.Join(missing, ", ")),
		}
	}

	for _, key := range d.inputs {
		if math.IsNaN(in[key]) || math.IsInf(in[key], 0) {
			return errorScore(d, fmt.Sprintf("non-finite %s", key))
		}
	}

	raw := d.formula(in)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return errorScore(d, "non-finite result")
	}

	return models.DialScore{
		Score:      round1(clamp(raw)),
		Kind:       models.ProvenanceCalculated,
		Provenance: fmt.Sprintf("Calculated(%s)", formatInputs(d.inputs, in)),
	}
}

func errorScore(d dialSpec, reason string) models.DialScore {
	return models.DialScore{
		Score:      d.fallback,
		Kind:       models.ProvenanceError,
		Provenance: fmt.Sprintf("Error(%s)", reason),
	}
}

func formatInputs(keys []string, in map[string]float64) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.FormatFloat(in[k], 'f', -1, 64))
	}
	return strings.Join(parts, ", ")
}

func clamp(v float64) float64 {
	return math.Min(maxScore, math.Max(minScore, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
