package signals

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ternarybob/macrolens/internal/models"
)

// Trend labels.
const (
	TrendUp      = "Trending Up"
	TrendDown    = "Trending Down"
	TrendRange   = "Range-bound"
	TrendUnknown = "Unknown"
)

const (
	trendLookbackBars = 21  // ~one trading month
	trendThresholdPct = 2.0 // beyond +/-2% counts as trending
	trendMaxAgeDays   = 4   // covers a long weekend
)

// ComputeTrend measures the one-month change of a daily close series.
// A bar dated on now's calendar day is dropped as a possibly incomplete session.
func ComputeTrend(bars []models.PriceBar, now time.Time) models.Trend {
	sorted := make([]models.PriceBar, 0, len(bars))
	today := dayOf(now)
	for _, b := range bars {
		if dayOf(b.Date).Equal(today) {
			continue
		}
		sorted = append(sorted, b)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	if len(sorted) < trendLookbackBars+1 {
		return models.Trend{Status: TrendUnknown, Audit: "Insufficient data"}
	}

	current := sorted[len(sorted)-1]
	prior := sorted[len(sorted)-1-trendLookbackBars]

	ageDays := int(today.Sub(dayOf(current.Date)).Hours() / 24)
	if ageDays > trendMaxAgeDays {
		return models.Trend{
			Status: TrendUnknown,
			Audit:  fmt.Sprintf("Data Stale (last bar %s, %dd old)", current.Date.Format("2006-01-02"), ageDays),
		}
	}

	if prior.Close == 0 || math.IsNaN(prior.Close) || math.IsNaN(current.Close) {
		return models.Trend{Status: TrendUnknown, Audit: "Invalid prior close"}
	}

	change := math.Round((current.Close-prior.Close)/prior.Close*100*100) / 100

	status := TrendRange
	switch {
	case change > trendThresholdPct:
		status = TrendUp
	case change < -trendThresholdPct:
		status = TrendDown
	}

	return models.Trend{
		Status:    status,
		ChangePct: &change,
		Audit: fmt.Sprintf("%s %.2f vs %s %.2f (%+.2f%% over %d bars)",
			current.Date.Format("2006-01-02"), current.Close,
			prior.Date.Format("2006-01-02"), prior.Close,
			change, trendLookbackBars),
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
