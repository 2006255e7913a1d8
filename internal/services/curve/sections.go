package curve

import (
	"strings"

	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/normalize"
)

const preliminaryNote = "PRELIMINARY: bulletin totals may be revised"

// RowsFromSection09 parses the raw treasury futures totals.
// Total volume is RTH plus Globex; it is nil only when both are missing.
func RowsFromSection09(doc models.Section09) map[string]models.Row {
	out := make(map[string]models.Row, len(doc.Tenors))
	for tenor, raw := range doc.Tenors {
		rth := normalize.ParseToken(string(raw.RTHVolume))
		globex := normalize.ParseToken(string(raw.GlobexVolume))

		out[rowKey(tenor)] = models.Row{
			TotalVolume:  sumKnown(rth, globex),
			OpenInterest: normalize.ParseToken(string(raw.OpenInterest)),
			OIChange:     normalize.ParseToken(string(raw.OIChange)),
		}
	}
	return out
}

// RowsFromSection11 parses the raw equity index futures rows, joining split sign tokens.
func RowsFromSection11(doc models.Section11) map[string]models.Row {
	out := make(map[string]models.Row, len(doc.Products))
	for product, raw := range doc.Products {
		out[rowKey(product)] = models.Row{
			TotalVolume:  normalize.ParseToken(string(raw.TotalVolume)),
			OpenInterest: normalize.ParseToken(string(raw.OpenInterest)),
			OIChange:     normalize.ParseSplitToken(raw.OIChange...),
		}
	}
	return out
}

// AggregateRates aggregates a Section 09 document and carries its quality notes.
func AggregateRates(doc models.Section09) models.CurveAggregate {
	agg := Aggregate(RatesLayout, RowsFromSection09(doc))
	if doc.IsPreliminary {
		agg.Quality.Notes = append(agg.Quality.Notes, preliminaryNote)
	}
	agg.Quality.Notes = append(agg.Quality.Notes, cleanNotes(doc.DataQualityNotes)...)
	return agg
}

// AggregateEquity aggregates a Section 11 document and carries its quality notes.
func AggregateEquity(doc models.Section11) models.CurveAggregate {
	agg := Aggregate(EquityLayout, RowsFromSection11(doc))
	agg.Quality.Notes = append(agg.Quality.Notes, cleanNotes(doc.DataQualityNotes)...)
	return agg
}

// AlertNotes returns the notes worth surfacing to readers, dropping per-row gap markers.
func AlertNotes(q models.CurveQuality) []string {
	var out []string
	for _, n := range q.Notes {
		if !strings.HasPrefix(n, MissingNotePrefix) {
			out = append(out, n)
		}
	}
	return out
}

func rowKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sumKnown(values ...*int64) *int64 {
	var sum int64
	known := false
	for _, v := range values {
		if v != nil {
			sum += *v
			known = true
		}
	}
	if !known {
		return nil
	}
	return &sum
}

func cleanNotes(notes []string) []string {
	var out []string
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
