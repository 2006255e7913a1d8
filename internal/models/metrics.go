package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ternarybob/macrolens/internal/normalize"
)

// Metric field names produced by the extraction collaborator.
const (
	MetricWisdomTreeAsOfDate   = "wisdomtree_as_of_date"
	MetricHYSpreadCurrent      = "hy_spread_current"
	MetricHYSpreadMedian       = "hy_spread_median"
	MetricForwardPECurrent     = "forward_pe_current"
	MetricRealYield10Y         = "real_yield_10y"
	MetricInflation5Y5Y        = "inflation_expectations_5y5y"
	MetricYield10Y             = "yield_10y"
	MetricYield2Y              = "yield_2y"
	MetricInterestCoverage     = "interest_coverage_small_cap"
	MetricVIX                  = "vix_index"
	MetricCMEBulletinDate      = "cme_bulletin_date"
	MetricCMETotalVolume       = "cme_total_volume"
	MetricCMETotalOpenInterest = "cme_total_open_interest"
	MetricCMETotalOINetChange  = "cme_total_oi_net_change"
	MetricSP500Current         = "sp500_current"
	MetricSP500TrendStatus     = "sp500_trend_status"
	MetricSP500TrendAudit      = "sp500_trend_audit"
	MetricSP500ChangePct       = "sp500_1mo_change_pct"
	MetricUST10YChangeBps      = "ust10y_change_bps"
)

// FuturesOIChangeKey returns the metric name holding the futures OI delta for an asset class.
func FuturesOIChangeKey(asset AssetClass) string {
	return fmt.Sprintf("cme_%s_futures_oi_change", asset)
}

// OptionsOIChangeKey returns the metric name holding the options OI delta for an asset class.
func OptionsOIChangeKey(asset AssetClass) string {
	return fmt.Sprintf("cme_%s_options_oi_change", asset)
}

// RequiredCMEFields are the bulletin fields whose absence marks the run as incomplete.
var RequiredCMEFields = []string{
	MetricCMETotalVolume,
	MetricCMETotalOpenInterest,
	"cme_rates_futures_oi_change",
	"cme_equity_futures_oi_change",
}

// ExtractedMetrics is the JSON-shaped mapping produced once per run by the extractor.
// Values are float64, int, string or nil. A nil or absent value is unknown, never zero.
type ExtractedMetrics map[string]interface{}

// ParseExtractedMetrics decodes a JSON object, keeping numbers exact.
func ParseExtractedMetrics(data []byte) (ExtractedMetrics, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m ExtractedMetrics
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode extracted metrics: %w", err)
	}
	if m == nil {
		m = ExtractedMetrics{}
	}
	return m, nil
}

// Has reports whether the field is present and not null.
func (m ExtractedMetrics) Has(key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// Float returns a numeric field. Numeric strings are read through the normalizer.
// Non-finite values are returned as-is so callers can flag them.
func (m ExtractedMetrics) Float(key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		if p := normalize.ParseDecimal(n); p != nil {
			return *p, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Int returns an integer field. Strings go through normalize.ParseToken so
// "UNCH" reads as 0 and "----" as missing.
func (m ExtractedMetrics) Int(key string) *int64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}

	switch n := v.(type) {
	case int:
		i := int64(n)
		return &i
	case int64:
		return &n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || math.Abs(n) >= 1<<63 {
			return nil
		}
		i := int64(n)
		return &i
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return &i
		}
		return normalize.ParseToken(n.String())
	case string:
		return normalize.ParseToken(n)
	default:
		return nil
	}
}

// Text returns a text field, formatting numbers when needed.
func (m ExtractedMetrics) Text(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// Missing returns the subset of keys that are absent or null, preserving order.
func (m ExtractedMetrics) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if !m.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// With returns a copy of the metrics with the given field set.
// The receiver is never mutated.
func (m ExtractedMetrics) With(key string, value interface{}) ExtractedMetrics {
	out := make(ExtractedMetrics, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}
