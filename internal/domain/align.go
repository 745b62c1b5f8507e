package domain

import (
	"fmt"
	"math"
	"time"
)

// EqualizeEndDates truncates every series to end at the earliest last date
// among them. The result order matches the argument order.
func EqualizeEndDates(series ...Series) ([]Series, error) {
	if len(series) == 0 {
		return nil, nil
	}
	var end time.Time
	for i, s := range series {
		last, err := s.LastDate()
		if err != nil {
			return nil, fmt.Errorf("equalize end dates: series %d: %w", i, err)
		}
		if i == 0 || last.Before(end) {
			end = last
		}
	}
	out := make([]Series, len(series))
	for i, s := range series {
		out[i] = s.Between(time.Time{}, end)
	}
	return out, nil
}

// BackfillStart reindexes s onto the gap-free daily calendar running from
// start to s's last date. Dates absent from s, including every date before
// its first row, are filled with NaN. When start falls after s's first date
// the earlier rows are dropped.
func BackfillStart(s Series, start time.Time) (Series, error) {
	end, err := s.LastDate()
	if err != nil {
		return Series{}, fmt.Errorf("backfill start: %w", err)
	}
	return Reindex(s, DailyCalendar(start, end)), nil
}

// Reindex returns s laid out on dates; rows with no match in s are NaN.
func Reindex(s Series, dates []time.Time) Series {
	out := NewSeries(dates, s.Columns, math.NaN())
	for i, d := range dates {
		j := s.dateIndex(d)
		if j < 0 {
			continue
		}
		for c := range out.Values {
			out.Values[c][i] = s.Values[c][j]
		}
	}
	return out
}
