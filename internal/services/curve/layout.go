// Package curve rolls per-tenor and per-product bulletin rows into cluster
// statistics and a dominance summary. All functions are pure.
package curve

// ClusterDef is a named group of rows.
type ClusterDef struct {
	Name        string
	Members     []string
	Description string
}

// Layout fixes the expected rows, their clusters and the regime vocabulary of a table.
// The first and last clusters are the extremes compared for the regime label.
type Layout struct {
	Name       string
	Unit       string // "tenors" or "products"
	Rows       []string
	Labels     map[string]string
	Clusters   []ClusterDef
	MinPresent int
	FrontLabel string
	BackLabel  string
	MixedLabel string
}

// Label returns the display label of a row.
func (l Layout) Label(row string) string {
	if s, ok := l.Labels[row]; ok {
		return s
	}
	return row
}

// ClusterOf returns the cluster containing a row.
func (l Layout) ClusterOf(row string) (ClusterDef, bool) {
	for _, c := range l.Clusters {
		for _, m := range c.Members {
			if m == row {
				return c, true
			}
		}
	}
	return ClusterDef{}, false
}

// RatesLayout is the CME Section 09 treasury futures curve.
var RatesLayout = Layout{
	Name: "rates",
	Unit: "tenors",
	Rows: []string{"2y", "3y", "5y", "10y", "tn", "30y", "ultra"},
	Labels: map[string]string{
		"2y":    "2Y",
		"3y":    "3Y",
		"5y":    "5Y",
		"10y":   "10Y",
		"tn":    "TN",
		"30y":   "30Y",
		"ultra": "ULTRA",
	},
	Clusters: []ClusterDef{
		{Name: "Short End", Members: []string{"2y", "3y"}, Description: "2-Year & 3-Year Notes (Fed Policy Proxy)"},
		{Name: "Belly", Members: []string{"5y"}, Description: "5-Year Note (Transition Zone)"},
		{Name: "Tens", Members: []string{"10y", "tn"}, Description: "10-Year & Ultra 10-Year (Benchmark Duration)"},
		{Name: "Long End", Members: []string{"30y", "ultra"}, Description: "30-Year & Ultra Bond (Inflation/Growth Proxy)"},
	},
	MinPresent: 5,
	FrontLabel: "Front-end dominant",
	BackLabel:  "Long-end dominant",
	MixedLabel: "Mixed",
}

// EquityLayout is the CME Section 11 equity index futures table.
var EquityLayout = Layout{
	Name: "equity",
	Unit: "products",
	Rows: []string{"es", "nq", "ym", "mid", "sml"},
	Labels: map[string]string{
		"es":  "S&P 500",
		"nq":  "NASDAQ",
		"ym":  "DOW",
		"mid": "MID 400",
		"sml": "SML 600",
	},
	Clusters: []ClusterDef{
		{Name: "Large Cap", Members: []string{"es", "nq", "ym"}, Description: "S&P 500, NASDAQ-100 and Dow futures"},
		{Name: "Small/Mid", Members: []string{"mid", "sml"}, Description: "S&P MidCap 400 and SmallCap 600 futures"},
	},
	MinPresent: 4,
	FrontLabel: "Large-cap dominant",
	BackLabel:  "Small/mid dominant",
	MixedLabel: "Mixed",
}
