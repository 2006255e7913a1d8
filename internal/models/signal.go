package models

import "sort"

// AssetClass identifies a CME asset class with its own noise threshold.
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetRates  AssetClass = "rates"
	AssetFX     AssetClass = "fx"
)

// AssetOrder is the fixed display order for per-asset output.
var AssetOrder = []AssetClass{AssetEquity, AssetRates, AssetFX}

// DisplayName returns the human label used in rendered blocks.
func (a AssetClass) DisplayName() string {
	switch a {
	case AssetEquity:
		return "Equities"
	case AssetRates:
		return "Rates"
	case AssetFX:
		return "FX"
	default:
		return string(a)
	}
}

// SignalLabel is the gated classification of an asset's OI deltas.
type SignalLabel string

const (
	SignalDirectional SignalLabel = "Directional"
	SignalHedgingVol  SignalLabel = "Hedging-Vol"
	SignalLowNoise    SignalLabel = "Low Signal/Noise"
	SignalUnknown     SignalLabel = "Unknown"
)

// ParticipationLabel describes whether combined OI grew or shrank.
type ParticipationLabel string

const (
	ParticipationExpanding   ParticipationLabel = "Expanding"
	ParticipationContracting ParticipationLabel = "Contracting"
	ParticipationUnknown     ParticipationLabel = "Unknown"
)

// SignalResult is the deterministic classification for one asset class.
// DirectionAllowed implies SignalLabel == SignalDirectional.
// SignalLabel == SignalUnknown implies one of the deltas is nil.
type SignalResult struct {
	Asset              AssetClass         `json:"asset"`
	SignalLabel        SignalLabel        `json:"signal_label"`
	DirectionAllowed   bool               `json:"direction_allowed"`
	NoiseFiltered      bool               `json:"noise_filtered"`
	GateReason         string             `json:"gate_reason"` // Derivation trail shown to readers
	ParticipationLabel ParticipationLabel `json:"participation_label"`
	FuturesOIDelta     *int64             `json:"futures_oi_delta"`
	OptionsOIDelta     *int64             `json:"options_oi_delta"`
	DominanceRatio     float64            `json:"dominance_ratio"` // |options| / max(|futures|, 1)
	NoiseThreshold     float64            `json:"noise_threshold"`
}

// DirectionText renders the direction gate the way reports show it.
func (s SignalResult) DirectionText() string {
	if s.DirectionAllowed {
		return "Allowed"
	}
	return "Unknown"
}

// SignalSet holds one result per asset class.
type SignalSet map[AssetClass]SignalResult

// Assets returns the keys in AssetOrder, followed by any other classes sorted by name.
func (s SignalSet) Assets() []AssetClass {
	out := make([]AssetClass, 0, len(s))
	for _, a := range AssetOrder {
		if _, ok := s[a]; ok {
			out = append(out, a)
		}
	}

	var extra []AssetClass
	for a := range s {
		known := false
		for _, o := range AssetOrder {
			if a == o {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, a)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Ordered returns the results in Assets order. Results missing their Asset
// field take it from the map key.
func (s SignalSet) Ordered() []SignalResult {
	out := make([]SignalResult, 0, len(s))
	for _, a := range s.Assets() {
		r := s[a]
		if r.Asset == "" {
			r.Asset = a
		}
		out = append(out, r)
	}
	return out
}

// AllDirectionAllowed reports whether every result permits direction.
// An empty set has no gate and reports true.
func (s SignalSet) AllDirectionAllowed() bool {
	for _, r := range s {
		if !r.DirectionAllowed {
			return false
		}
	}
	return true
}
