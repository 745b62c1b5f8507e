package domain

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date format used by every feed.
const DateLayout = "2006-01-02"

// BaselineCutoff is the last excluded date. Rows dated on or before it come
// from the low-volume summer 2020 period and are dropped during cleaning.
var BaselineCutoff = time.Date(2020, time.July, 31, 0, 0, 0, 0, time.UTC)

// SeriesStart is the first date offered to callers as a start boundary.
var SeriesStart = time.Date(2020, time.August, 1, 0, 0, 0, 0, time.UTC)

// ParseDate parses an ISO date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrSchema, s)
	}
	return t, nil
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyCalendar returns every date from start to end inclusive.
// It returns nil when end precedes start.
func DailyCalendar(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	days := int(end.Sub(start).Hours()/24) + 1
	out := make([]time.Time, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// MonthStarts returns the first day of every month from start's month to
// end's month inclusive.
func MonthStarts(start, end time.Time) []time.Time {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 1, 0) {
		out = append(out, d)
	}
	return out
}
