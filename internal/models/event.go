package models

import "time"

// Calendar flags that qualify how positioning data may be read.
const (
	FlagTripleWitching   = "TRIPLE_WITCHING"
	FlagMonthlyOpex      = "MONTHLY_OPEX"
	FlagIndexRebalance   = "INDEX_REBALANCE"
	FlagRussellRebalance = "RUSSELL_REBALANCE"
	FlagAuctionWeek      = "AUCTION_WEEK"
	FlagRefunding        = "REFUNDING"
	FlagDataQualityAlert = "DATA_QUALITY_ALERT"
)

// EventContext is the externally supplied set of calendar flags for a run.
// The compliance filter reads it and never modifies it.
type EventContext struct {
	FlagsToday  []string          `json:"flags_today"`
	FlagsRecent []string          `json:"flags_recent"`
	Notes       map[string]string `json:"notes"`
}

// Active returns today's flags followed by recent flags not already listed.
func (e EventContext) Active() []string {
	seen := make(map[string]bool, len(e.FlagsToday)+len(e.FlagsRecent))
	out := make([]string, 0, len(e.FlagsToday)+len(e.FlagsRecent))
	for _, f := range append(append([]string{}, e.FlagsToday...), e.FlagsRecent...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether no flag is active.
func (e EventContext) IsEmpty() bool {
	return len(e.FlagsToday) == 0 && len(e.FlagsRecent) == 0
}

// PriceBar is one daily close used by the equity trend computation.
type PriceBar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Trend is the one-month equity trend with its audit trail.
type Trend struct {
	Status    string   `json:"status"` // "Trending Up", "Trending Down", "Range-bound" or "Unknown"
	ChangePct *float64 `json:"change_pct,omitempty"`
	Audit     string   `json:"audit"`
}
