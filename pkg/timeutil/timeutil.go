// Package timeutil provides the day arithmetic and date formatting used by
// the sync engine. Durations are measured in elapsed time, not calendar days.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Day is one 24-hour period.
const Day = 24 * time.Hour

// Epoch is the Unix epoch in UTC. Used as "never" for missing timestamps.
var Epoch = time.Unix(0, 0).UTC()

// DaysBetween returns the number of whole 24h periods from then to now,
// rounded down. Negative spans return 0.
func DaysBetween(then, now time.Time) int {
	d := now.Sub(then)
	if d <= 0 {
		return 0
	}
	return int(d / Day)
}

// DaysSinceOrEpoch is DaysBetween with a nil time treated as Epoch.
func DaysSinceOrEpoch(then *time.Time, now time.Time) int {
	if then == nil {
		return DaysBetween(Epoch, now)
	}
	return DaysBetween(*then, now)
}

// DaysAgo returns now shifted back by n whole days.
func DaysAgo(now time.Time, n int) time.Time {
	return now.Add(-time.Duration(n) * Day)
}

// FromUnix converts Unix seconds to UTC time.
func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// FormatDate formats t as "Jan 2, 2006".
func FormatDate(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006")
}

// FormatDateOr formats t with FormatDate, or returns fallback for nil.
func FormatDateOr(t *time.Time, fallback string) string {
	if t == nil {
		return fallback
	}
	return FormatDate(*t)
}

// LoadLocation resolves an IANA zone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
