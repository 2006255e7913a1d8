// Package events provides the market event calendar and the in-process bus for
// audit lifecycle events.
package events

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/models"
)

// DefaultRecentDays is how many business days back a flag stays "recent".
const DefaultRecentDays = 3

// FlagNotes explains how each flag qualifies the positioning data.
var FlagNotes = map[string]string{
	models.FlagTripleWitching:   "Quarterly expiration; expiry/roll effects may distort OI/volume.",
	models.FlagMonthlyOpex:      "Monthly options expiration; expiry/roll effects may distort OI/volume.",
	models.FlagIndexRebalance:   "Quarterly index rebalance; equity index futures flows may be mechanical.",
	models.FlagRussellRebalance: "Russell reconstitution; equity index futures flows may be mechanical.",
	models.FlagAuctionWeek:      "Treasury auction week; rates OI/volume spikes may be auction or hedge related.",
	models.FlagRefunding:        "Quarterly refunding; rates OI/volume spikes may be auction or hedge related.",
}

// DatedEvent is a calendar entry loaded from YAML. End is inclusive and optional.
type DatedEvent struct {
	Flag  string `yaml:"flag"`
	Date  string `yaml:"date"`
	End   string `yaml:"end,omitempty"`
	Note  string `yaml:"note,omitempty"`
	start time.Time
	end   time.Time
}

type calendarFile struct {
	Holidays []string     `yaml:"holidays"`
	Events   []DatedEvent `yaml:"events"`
}

// Calendar derives the event flags for a date from fixed expiry rules plus dated entries.
type Calendar struct {
	dated       []DatedEvent
	holidays    []time.Time
	workingDays []time.Weekday
	recentDays  int
}

// NewCalendar returns a calendar with the expiry rules only.
func NewCalendar() *Calendar {
	return &Calendar{
		workingDays: common.DefaultWorkingDays(),
		recentDays:  DefaultRecentDays,
	}
}

// LoadCalendar reads a YAML calendar file. An empty path gives the rules-only calendar.
func LoadCalendar(path string) (*Calendar, error) {
	if path == "" {
		return NewCalendar(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event calendar %s: %w", path, err)
	}
	return ParseCalendar(data)
}

// ParseCalendar parses YAML of the form:
//
//	holidays: ["2025-04-18"]
//	events:
//	  - flag: AUCTION_WEEK
//	    date: "2025-12-08"
//	    end: "2025-12-12"
func ParseCalendar(data []byte) (*Calendar, error) {
	var file calendarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse event calendar: %w", err)
	}

	c := NewCalendar()
	for _, h := range file.Holidays {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		c.holidays = append(c.holidays, d)
	}

	for i, ev := range file.Events {
		ev.Flag = strings.ToUpper(strings.TrimSpace(ev.Flag))
		if ev.Flag == "" {
			return nil, fmt.Errorf("event %d has no flag", i)
		}
		start, err := time.Parse("2006-01-02", strings.TrimSpace(ev.Date))
		if err != nil {
			return nil, fmt.Errorf("event %d (%s) has invalid date %q: %w", i, ev.Flag, ev.Date, err)
		}
		ev.start, ev.end = start, start
		if ev.End != "" {
			end, err := time.Parse("2006-01-02", strings.TrimSpace(ev.End))
			if err != nil {
				return nil, fmt.Errorf("event %d (%s) has invalid end %q: %w", i, ev.Flag, ev.End, err)
			}
			if end.Before(start) {
				return nil, fmt.Errorf("event %d (%s) ends before it starts", i, ev.Flag)
			}
			ev.end = end
		}
		c.dated = append(c.dated, ev)
	}
	return c, nil
}

// Context returns today's flags, the flags of the previous business days and their notes.
func (c *Calendar) Context(date time.Time) models.EventContext {
	ctx := models.EventContext{
		FlagsToday:  c.Flags(date),
		FlagsRecent: []string{},
		Notes:       map[string]string{},
	}

	seen := map[string]bool{}
	for _, day := range common.PreviousWorkingDays(date, c.recentDays, c.workingDays, c.holidays) {
		for _, f := range c.Flags(day) {
			if !seen[f] {
				seen[f] = true
				ctx.FlagsRecent = append(ctx.FlagsRecent, f)
			}
		}
	}

	for _, f := range ctx.Active() {
		if note := c.note(f, date); note != "" {
			ctx.Notes[f] = note
		}
	}
	return ctx
}

// Flags returns the flags that fall on date, expiry rules first.
func (c *Calendar) Flags(date time.Time) []string {
	d := common.DateOnly(date)
	var flags []string

	if d.Equal(c.expiryDay(d.Year(), d.Month())) {
		if isQuarterEnd(d.Month()) {
			flags = append(flags, models.FlagTripleWitching)
		}
		flags = append(flags, models.FlagMonthlyOpex)
		if isQuarterEnd(d.Month()) {
			flags = append(flags, models.FlagIndexRebalance)
		}
	}
	if d.Month() == time.June && d.Equal(lastWeekday(d.Year(), time.June, time.Friday)) {
		flags = append(flags, models.FlagRussellRebalance)
	}

	for _, ev := range c.dated {
		if !d.Before(ev.start) && !d.After(ev.end) && !contains(flags, ev.Flag) {
			flags = append(flags, ev.Flag)
		}
	}
	return flags
}

// expiryDay is the third Friday, or the working day before it when it is a holiday.
func (c *Calendar) expiryDay(year int, month time.Month) time.Time {
	d := nthWeekday(year, month, time.Friday, 3)
	for i := 0; i < 7 && !common.IsWorkingDay(d, c.workingDays, c.holidays); i++ {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// note prefers a dated entry's own note over the fixed explanation.
func (c *Calendar) note(flag string, date time.Time) string {
	d := common.DateOnly(date)
	for _, ev := range c.dated {
		if ev.Flag == flag && ev.Note != "" && !d.Before(ev.start) && !d.After(ev.end.AddDate(0, 0, 7)) {
			return ev.Note
		}
	}
	return FlagNotes[flag]
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

func isQuarterEnd(m time.Month) bool {
	return m == time.March || m == time.June || m == time.September || m == time.December
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
