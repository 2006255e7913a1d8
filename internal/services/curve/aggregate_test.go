package curve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/macrolens/internal/models"
)

func change(v int64) models.Row {
	return models.Row{OIChange: &v}
}

func TestAggregate_RatesDominance(t *testing.T) {
	rows := map[string]models.Row{
		"2y":    change(10_000),
		"3y":    change(-5_000),
		"5y":    change(20_000),
		"10y":   change(-8_000),
		"tn":    change(2_000),
		"30y":   change(-40_000),
		"ultra": change(15_000),
	}

	agg := Aggregate(RatesLayout, rows)

	short, ok := agg.Cluster("Short End")
	require.True(t, ok)
	assert.Equal(t, int64(15_000), short.AbsOIChange)
	assert.Equal(t, int64(5_000), short.NetOIChange)

	long, ok := agg.Cluster("Long End")
	require.True(t, ok)
	assert.Equal(t, int64(55_000), long.AbsOIChange)
	assert.Equal(t, int64(-25_000), long.NetOIChange)

	assert.Equal(t, "Long End", agg.Dominance.ActiveCluster)
	assert.Equal(t, "30y", agg.Dominance.ActiveRow)
	assert.InDelta(t, 60_000.0/100_000.0, agg.Dominance.Concentration, 1e-9)
	assert.Equal(t, "Long-end dominant", agg.Dominance.RegimeLabel)
	assert.True(t, agg.Quality.IsComplete)
	assert.Empty(t, agg.Quality.Notes)
}

func TestAggregate_FrontEndAndTies(t *testing.T) {
	front := Aggregate(RatesLayout, map[string]models.Row{
		"2y": change(50_000), "3y": change(1), "5y": change(0), "10y": change(0), "30y": change(-100),
	})
	assert.Equal(t, "Front-end dominant", front.Dominance.RegimeLabel)

	tie := Aggregate(RatesLayout, map[string]models.Row{
		"2y": change(5_000), "3y": change(0), "5y": change(0), "10y": change(0), "30y": change(-5_000),
	})
	assert.Equal(t, "Mixed", tie.Dominance.RegimeLabel)
	assert.Equal(t, "Short End", tie.Dominance.ActiveCluster, "equal clusters resolve in layout order")
	assert.Equal(t, "2y", tie.Dominance.ActiveRow, "equal rows resolve in layout order")
	assert.Equal(t, 1.0, tie.Dominance.Concentration)
}

func TestAggregate_ZeroTotal(t *testing.T) {
	agg := Aggregate(RatesLayout, map[string]models.Row{
		"2y": change(0), "3y": change(0), "5y": change(0), "10y": change(0), "tn": change(0),
	})

	assert.Equal(t, 0.0, agg.Dominance.Concentration)
	assert.Equal(t, "Mixed", agg.Dominance.RegimeLabel)
	assert.Empty(t, agg.Dominance.ActiveCluster)
	assert.True(t, agg.Quality.IsComplete)
	assert.Equal(t, []string{"30y", "ultra"}, agg.Quality.MissingRows)
	assert.Equal(t, []string{"partial_missing_30y", "partial_missing_ultra"}, agg.Quality.Notes)
}

func TestAggregate_Incomplete(t *testing.T) {
	agg := Aggregate(RatesLayout, map[string]models.Row{
		"2y":  change(1_000),
		"5y":  change(2_000),
		"10y": {}, // present but no OI change
	})

	assert.False(t, agg.Quality.IsComplete)
	require.NotEmpty(t, agg.Quality.Notes)
	assert.Equal(t, "INCOMPLETE: fewer than 5 of 7 tenors reported", agg.Quality.Notes[0])
	assert.Contains(t, agg.Quality.MissingRows, "10y")
	assert.Equal(t, []string{"INCOMPLETE: fewer than 5 of 7 tenors reported"}, AlertNotes(agg.Quality))
}

func TestAggregateRates_FromSection09(t *testing.T) {
	raw := []byte(`{
		"totals": {
			"2Y":    {"rth_volume": "1,000", "globex_volume": "500", "open_interest": "4,000,000", "oi_change": "+12,500"},
			"3y":    {"rth_volume": "----", "globex_volume": "----", "open_interest": "1,000", "oi_change": "UNCH"},
			"5y":    {"rth_volume": 700, "globex_volume": null, "open_interest": "2,000", "oi_change": -3000},
			"10y":   {"oi_change": "8,000"},
			"tn":    {"oi_change": "—"},
			"30y":   {"oi_change": "-30,000"},
			"ultra": {"oi_change": "1,000"}
		},
		"data_quality_notes": ["Section 09 footer truncated", " "],
		"is_preliminary": true
	}`)

	var doc models.Section09
	require.NoError(t, json.Unmarshal(raw, &doc))

	agg := AggregateRates(doc)

	two := agg.Rows["2y"]
	require.NotNil(t, two.TotalVolume)
	assert.Equal(t, int64(1_500), *two.TotalVolume)
	assert.Equal(t, int64(12_500), *two.OIChange)

	three := agg.Rows["3y"]
	assert.Nil(t, three.TotalVolume)
	require.NotNil(t, three.OIChange)
	assert.Equal(t, int64(0), *three.OIChange, "UNCH is a zero change, not missing")

	assert.Equal(t, int64(700), *agg.Rows["5y"].TotalVolume)
	assert.Equal(t, []string{"tn"}, agg.Quality.MissingRows)
	assert.True(t, agg.Quality.IsComplete)
	assert.Equal(t, "30y", agg.Dominance.ActiveRow)
	assert.Equal(t, []string{
		"partial_missing_tn",
		"PRELIMINARY: bulletin totals may be revised",
		"Section 09 footer truncated",
	}, agg.Quality.Notes)
}

func TestAggregateEquity_SplitSignTokens(t *testing.T) {
	raw := []byte(`{
		"products": {
			"es":  {"total_volume": "1,500,000", "open_interest": "2,100,000", "oi_change": ["-", "64"]},
			"nq":  {"total_volume": "600,000", "open_interest": "250,000", "oi_change": "+1,200"},
			"ym":  {"total_volume": "100,000", "open_interest": "90,000", "oi_change": ["UNCH"]},
			"mid": {"total_volume": "20,000", "open_interest": "50,000", "oi_change": ["-", "3,500"]},
			"sml": {"total_volume": "5,000", "open_interest": "10,000", "oi_change": null}
		}
	}`)

	var doc models.Section11
	require.NoError(t, json.Unmarshal(raw, &doc))

	agg := AggregateEquity(doc)

	assert.Equal(t, int64(-64), *agg.Rows["es"].OIChange)
	assert.Equal(t, int64(1_200), *agg.Rows["nq"].OIChange)
	assert.Equal(t, int64(0), *agg.Rows["ym"].OIChange)
	assert.Nil(t, agg.Rows["sml"].OIChange)
	assert.True(t, agg.Quality.IsComplete, "four of five products is complete")

	large, _ := agg.Cluster("Large Cap")
	small, _ := agg.Cluster("Small/Mid")
	assert.Equal(t, int64(1_264), large.AbsOIChange)
	assert.Equal(t, int64(3_500), small.AbsOIChange)
	assert.Equal(t, "Small/mid dominant", agg.Dominance.RegimeLabel)
	assert.Equal(t, "mid", agg.Dominance.ActiveRow)
	assert.Equal(t, "SML 600", EquityLayout.Label("sml"))
}
