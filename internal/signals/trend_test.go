package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/macrolens/internal/models"
)

// businessBars returns n weekday bars ending on end, all closing at 100.
func businessBars(end time.Time, n int) []models.PriceBar {
	bars := make([]models.PriceBar, 0, n)
	for d := end; len(bars) < n; d = d.AddDate(0, 0, -1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		bars = append([]models.PriceBar{{Date: d, Close: 100}}, bars...)
	}
	return bars
}

func TestComputeTrend_UpFromYesterday(t *testing.T) {
	now := time.Date(2025, 12, 19, 12, 0, 0, 0, time.UTC) // Friday
	bars := businessBars(now.AddDate(0, 0, -1), 60)
	bars[len(bars)-1].Close = 105
	bars[len(bars)-22].Close = 100

	tr := ComputeTrend(bars, now)

	assert.Equal(t, TrendUp, tr.Status)
	require.NotNil(t, tr.ChangePct)
	assert.Equal(t, 5.0, *tr.ChangePct)
	assert.Contains(t, tr.Audit, bars[len(bars)-1].Date.Format("2006-01-02"))
	assert.Contains(t, tr.Audit, bars[len(bars)-22].Date.Format("2006-01-02"))
}

func TestComputeTrend_ExcludesToday(t *testing.T) {
	now := time.Date(2025, 12, 19, 12, 0, 0, 0, time.UTC)
	bars := businessBars(now, 60)
	bars[len(bars)-2].Close = 95
	bars[len(bars)-23].Close = 100
	bars[len(bars)-1].Close = 500 // today's partial session

	tr := ComputeTrend(bars, now)

	assert.Equal(t, TrendDown, tr.Status)
	require.NotNil(t, tr.ChangePct)
	assert.Equal(t, -5.0, *tr.ChangePct)
	assert.Contains(t, tr.Audit, "2025-12-18")
	assert.Contains(t, tr.Audit, bars[len(bars)-23].Date.Format("2006-01-02"))
}

func TestComputeTrend_RangeBound(t *testing.T) {
	now := time.Date(2025, 12, 19, 12, 0, 0, 0, time.UTC)
	bars := businessBars(now.AddDate(0, 0, -1), 30)
	bars[len(bars)-1].Close = 101.5

	tr := ComputeTrend(bars, now)
	assert.Equal(t, TrendRange, tr.Status)
}

func TestComputeTrend_Insufficient(t *testing.T) {
	now := time.Date(2025, 12, 19, 12, 0, 0, 0, time.UTC)

	tr := ComputeTrend(businessBars(now, 10), now)

	assert.Equal(t, TrendUnknown, tr.Status)
	assert.Equal(t, "Insufficient data", tr.Audit)
	assert.Nil(t, tr.ChangePct)

	empty := ComputeTrend(nil, now)
	assert.Equal(t, TrendUnknown, empty.Status)
}

func TestComputeTrend_Stale(t *testing.T) {
	now := time.Date(2025, 12, 22, 12, 0, 0, 0, time.UTC) // Monday
	last := time.Date(2025, 12, 16, 16, 0, 0, 0, time.UTC)

	tr := ComputeTrend(businessBars(last, 60), now)

	assert.Equal(t, TrendUnknown, tr.Status)
	assert.Contains(t, tr.Audit, "Data Stale")
}

func TestComputeTrend_UnsortedInput(t *testing.T) {
	now := time.Date(2025, 12, 19, 12, 0, 0, 0, time.UTC)
	bars := businessBars(now.AddDate(0, 0, -1), 40)
	bars[len(bars)-1].Close = 110

	reversed := make([]models.PriceBar, len(bars))
	for i := range bars {
		reversed[len(bars)-1-i] = bars[i]
	}

	assert.Equal(t, ComputeTrend(bars, now), ComputeTrend(reversed, now))
}
