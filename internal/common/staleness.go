// Package common provides shared utilities across the application.
package common

import (
	"strings"
	"time"

	"github.com/ternarybob/macrolens/internal/models"
)

// Freshness statuses.
const (
	FreshnessFresh   = "FRESH"
	FreshnessStale   = "STALE"
	FreshnessUnknown = "UNKNOWN"
)

// DefaultMaxAgeDays is the buffer that absorbs weekends and bulletin publication lag.
const DefaultMaxAgeDays = 3

// reportDateLayouts are the formats report dates arrive in from the extractor.
var reportDateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"2 January 2006",
	"Monday, January 2, 2006",
}

// ParseReportDate parses a report date in any of the supported layouts.
func ParseReportDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range reportDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CheckFreshness compares a source's report date with the effective date.
// Data more than maxAgeDays older than the effective date is STALE; an
// unparseable date is UNKNOWN. Future-dated sources count as fresh.
func CheckFreshness(source, sourceDate string, effective time.Time, maxAgeDays int) models.Freshness {
	f := models.Freshness{Source: source, Date: strings.TrimSpace(sourceDate), Status: FreshnessUnknown}

	d, ok := ParseReportDate(sourceDate)
	if !ok {
		return f
	}

	f.AgeDays = int(DateOnly(effective).Sub(DateOnly(d)).Hours() / 24)
	if f.AgeDays > maxAgeDays {
		f.Status = FreshnessStale
	} else {
		f.Status = FreshnessFresh
	}
	return f
}

// DefaultWorkingDays returns Monday to Friday.
func DefaultWorkingDays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// IsWorkingDay checks if a given date is a working day.
// It accounts for both weekends (based on workingDays) and holidays.
func IsWorkingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) bool {
	dayOfWeek := t.Weekday()
	isWorkDay := false
	for _, wd := range workingDays {
		if wd == dayOfWeek {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	tDate := DateOnly(t)
	for _, h := range holidays {
		if tDate.Equal(DateOnly(h)) {
			return false
		}
	}

	return true
}

// PreviousWorkingDays returns the n working days before t, most recent first.
func PreviousWorkingDays(t time.Time, n int, workingDays []time.Weekday, holidays []time.Time) []time.Time {
	var out []time.Time
	current := DateOnly(t)

	// Bounded walk handles long holiday periods like Christmas/New Year
	for i := 0; i < n*3+10 && len(out) < n; i++ {
		current = current.AddDate(0, 0, -1)
		if IsWorkingDay(current, workingDays, holidays) {
			out = append(out, current)
		}
	}
	return out
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
