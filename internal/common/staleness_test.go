package common

import (
	"testing"
	"time"
)

// Helper to create a time easily
func mustTime(t *testing.T, layout, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

func TestCheckFreshness(t *testing.T) {
	effective := mustTime(t, "2006-01-02", "2025-12-19")

	tests := []struct {
		name       string
		date       string
		wantStatus string
		wantAge    int
	}{
		{"same day iso", "2025-12-19", FreshnessFresh, 0},
		{"three days is within buffer", "2025-12-16", FreshnessFresh, 3},
		{"four days is stale", "2025-12-15", FreshnessStale, 4},
		{"long month name", "December 18, 2025", FreshnessFresh, 1},
		{"short month name", "Dec 10, 2025", FreshnessStale, 9},
		{"us slashes", "12/18/2025", FreshnessFresh, 1},
		{"future date", "2025-12-22", FreshnessFresh, -3},
		{"empty", "", FreshnessUnknown, 0},
		{"garbage", "last Thursday", FreshnessUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckFreshness("CME", tt.date, effective, DefaultMaxAgeDays)
			if got.Status != tt.wantStatus {
				t.Errorf("CheckFreshness(%q) status = %s, want %s", tt.date, got.Status, tt.wantStatus)
			}
			if got.AgeDays != tt.wantAge {
				t.Errorf("CheckFreshness(%q) age = %d, want %d", tt.date, got.AgeDays, tt.wantAge)
			}
			if got.Source != "CME" {
				t.Errorf("source = %q", got.Source)
			}
		})
	}
}

func TestIsWorkingDay(t *testing.T) {
	workingDays := DefaultWorkingDays() // Mon-Fri

	tests := []struct {
		name        string
		date        string
		holidays    []string
		wantWorking bool
	}{
		{"monday", "2025-01-06", nil, true},
		{"friday", "2025-01-10", nil, true},
		{"saturday", "2025-01-11", nil, false},
		{"sunday", "2025-01-12", nil, false},
		{"holiday on monday", "2025-01-06", []string{"2025-01-06"}, false},
		{"holiday on different day", "2025-01-07", []string{"2025-01-06"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date := mustTime(t, "2006-01-02", tt.date)
			var holidays []time.Time
			for _, h := range tt.holidays {
				holidays = append(holidays, mustTime(t, "2006-01-02", h))
			}

			got := IsWorkingDay(date, workingDays, holidays)
			if got != tt.wantWorking {
				t.Errorf("IsWorkingDay(%s) = %v, want %v", tt.date, got, tt.wantWorking)
			}
		})
	}
}

func TestPreviousWorkingDays(t *testing.T) {
	monday := mustTime(t, "2006-01-02", "2025-12-22")

	got := PreviousWorkingDays(monday, 3, DefaultWorkingDays(), nil)

	want := []string{"2025-12-19", "2025-12-18", "2025-12-17"}
	if len(got) != len(want) {
		t.Fatalf("got %d days, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Format("2006-01-02") != w {
			t.Errorf("day %d = %s, want %s", i, got[i].Format("2006-01-02"), w)
		}
	}
}
