// Package signals provides the deterministic signal classifier and the equity trend calculation.
// All functions are pure: they read only their arguments and perform no I/O.
package signals

import (
	"fmt"
	"sort"

	"github.com/ternarybob/macrolens/internal/models"
)

// Default noise thresholds, in contracts. These are policy values carried over
// from the desk's operating rules and have no documented derivation.
const (
	DefaultEquityNoiseThreshold = 50_000
	DefaultRatesNoiseThreshold  = 75_000
	DefaultFXNoiseThreshold     = 25_000
)

const missingDataReason = "Missing Data"

// Policy is the immutable configuration of a Classifier.
type Policy struct {
	NoiseThresholds map[models.AssetClass]float64
}

// DefaultPolicy returns the standard per-asset noise thresholds.
func DefaultPolicy() Policy {
	return Policy{
		NoiseThresholds: map[models.AssetClass]float64{
			models.AssetEquity: DefaultEquityNoiseThreshold,
			models.AssetRates:  DefaultRatesNoiseThreshold,
			models.AssetFX:     DefaultFXNoiseThreshold,
		},
	}
}

// Classifier turns futures/options OI deltas into gated labels.
type Classifier struct {
	thresholds map[models.AssetClass]float64
	fallback   float64
}

// NewClassifier copies the policy so later changes to the caller's map have no effect.
// Non-positive thresholds are ignored.
func NewClassifier(policy Policy) *Classifier {
	c := &Classifier{thresholds: make(map[models.AssetClass]float64, len(policy.NoiseThresholds))}
	for asset, th := range policy.NoiseThresholds {
		if th <= 0 {
			continue
		}
		c.thresholds[asset] = th
		if th > c.fallback {
			c.fallback = th
		}
	}
	if len(c.thresholds) == 0 {
		return NewClassifier(DefaultPolicy())
	}
	return c
}

// Threshold returns the noise threshold for an asset class.
// Unconfigured classes get the largest configured threshold.
func (c *Classifier) Threshold(asset models.AssetClass) float64 {
	if th, ok := c.thresholds[asset]; ok {
		return th
	}
	return c.fallback
}

// Assets returns the configured asset classes in display order.
func (c *Classifier) Assets() []models.AssetClass {
	var out []models.AssetClass
	for _, a := range models.AssetOrder {
		if _, ok := c.thresholds[a]; ok {
			out = append(out, a)
		}
	}
	var extra []models.AssetClass
	for a := range c.thresholds {
		if !isOrdered(a) {
			extra = append(extra, a)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// ClassifyAsset classifies one asset class using its configured threshold.
func (c *Classifier) ClassifyAsset(asset models.AssetClass, futuresDelta, optionsDelta *int64) models.SignalResult {
	r := Classify(futuresDelta, optionsDelta, c.Threshold(asset))
	r.Asset = asset
	return r
}

// ClassifyMetrics classifies every configured asset class from the bulletin OI fields.
// Assets whose fields are absent are still returned, labelled Unknown.
func (c *Classifier) ClassifyMetrics(m models.ExtractedMetrics) models.SignalSet {
	out := make(models.SignalSet, len(c.thresholds))
	for _, asset := range c.Assets() {
		fut := m.Int(models.FuturesOIChangeKey(asset))
		opt := m.Int(models.OptionsOIChangeKey(asset))
		out[asset] = c.ClassifyAsset(asset, fut, opt)
	}
	return out
}

// Classify gates a pair of signed OI deltas against a noise threshold.
//
// Order of gates:
//  1. Missing data: either delta nil -> Unknown
//  2. Noise: max(|f|, |o|) < threshold -> Low Signal/Noise
//  3. Dominance: |o| >= |f| -> Hedging-Vol, otherwise Directional
//
// Only Directional allows direction. Classify is total and never panics.
func Classify(futuresDelta, optionsDelta *int64, noiseThreshold float64) models.SignalResult {
	result := models.SignalResult{
		FuturesOIDelta: copyDelta(futuresDelta),
		OptionsOIDelta: copyDelta(optionsDelta),
		NoiseThreshold: noiseThreshold,
	}

	if futuresDelta == nil || optionsDelta == nil {
		result.SignalLabel = models.SignalUnknown
		result.ParticipationLabel = models.ParticipationUnknown
		result.GateReason = missingDataReason
		return result
	}

	futAbs := absDelta(*futuresDelta)
	optAbs := absDelta(*optionsDelta)

	// Summed in float64 so extreme deltas cannot overflow
	net := float64(*futuresDelta) + float64(*optionsDelta)
	if net > 0 {
		result.ParticipationLabel = models.ParticipationExpanding
	} else {
		result.ParticipationLabel = models.ParticipationContracting
	}

	result.DominanceRatio = optAbs / maxFloat(futAbs, 1)

	if maxFloat(futAbs, optAbs) < noiseThreshold {
		result.SignalLabel = models.SignalLowNoise
		result.NoiseFiltered = true
		result.GateReason = fmt.Sprintf("Max |OI Δ| %s < noise threshold %s",
			formatContracts(maxFloat(futAbs, optAbs)), formatContracts(noiseThreshold))
		return result
	}

	// An exact tie (optAbs == futAbs) resolves to Hedging-Vol. The comparison is
	// intentionally >= so equal activity never unlocks directional language.
	if optAbs >= futAbs {
		result.SignalLabel = models.SignalHedgingVol
		suffix := "options-led, direction suppressed"
		if optAbs == futAbs {
			suffix = "tie resolves to Hedging-Vol"
		}
		result.GateReason = fmt.Sprintf("Options %.2fx Futures (%s)", result.DominanceRatio, suffix)
		return result
	}

	result.SignalLabel = models.SignalDirectional
	result.DirectionAllowed = true
	result.GateReason = fmt.Sprintf("Options %.2fx Futures (futures-led)", result.DominanceRatio)
	return result
}

func isOrdered(a models.AssetClass) bool {
	for _, o := range models.AssetOrder {
		if o == a {
			return true
		}
	}
	return false
}

func absDelta(v int64) float64 {
	f := float64(v)
	if f < 0 {
		return -f
	}
	return f
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func copyDelta(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// formatContracts renders a contract count with thousands separators.
func formatContracts(v float64) string {
	return FormatInt(int64(v))
}

// FormatInt renders an integer with thousands separators, e.g. -120,000.
func FormatInt(v int64) string {
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}

	digits := fmt.Sprintf("%d", u)
	var out []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// FormatSignedInt renders a delta with an explicit sign, e.g. +40,000.
// A nil delta renders as "N/A".
func FormatSignedInt(v *int64) string {
	if v == nil {
		return "N/A"
	}
	if *v > 0 {
		return "+" + FormatInt(*v)
	}
	return FormatInt(*v)
}
