package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Series is a wide table keyed by date: one row per date, one named numeric
// column per age band, region or metric. Missing values are NaN.
//
// Values is column-major: Values[c][i] is column Columns[c] on Dates[i].
// Dates are strictly increasing. Operations never modify their inputs.
type Series struct {
	Dates   []time.Time
	Columns []string
	Values  [][]float64
}

// NewSeries allocates a series over dates and columns with every cell set to fill.
func NewSeries(dates []time.Time, columns []string, fill float64) Series {
	s := Series{
		Dates:   slices.Clone(dates),
		Columns: slices.Clone(columns),
		Values:  make([][]float64, len(columns)),
	}
	for c := range s.Values {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = fill
		}
		s.Values[c] = col
	}
	return s
}

// Len returns the number of rows.
func (s Series) Len() int { return len(s.Dates) }

// Empty reports whether the series has no rows.
func (s Series) Empty() bool { return len(s.Dates) == 0 }

// FirstDate returns the earliest date.
func (s Series) FirstDate() (time.Time, error) {
	if s.Empty() {
		return time.Time{}, ErrEmptySeries
	}
	return s.Dates[0], nil
}

// LastDate returns the latest date.
func (s Series) LastDate() (time.Time, error) {
	if s.Empty() {
		return time.Time{}, ErrEmptySeries
	}
	return s.Dates[len(s.Dates)-1], nil
}

// ColumnIndex returns the position of name, or -1.
func (s Series) ColumnIndex(name string) int {
	return slices.Index(s.Columns, name)
}

// Column returns a copy of the named column.
func (s Series) Column(name string) ([]float64, error) {
	c := s.ColumnIndex(name)
	if c < 0 {
		return nil, fmt.Errorf("%w: column %q not found", ErrSchema, name)
	}
	return slices.Clone(s.Values[c]), nil
}

// Value returns the named column on date d, or NaN when either is absent.
func (s Series) Value(name string, d time.Time) float64 {
	c := s.ColumnIndex(name)
	i := s.dateIndex(d)
	if c < 0 || i < 0 {
		return math.NaN()
	}
	return s.Values[c][i]
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	out := Series{
		Dates:   slices.Clone(s.Dates),
		Columns: slices.Clone(s.Columns),
		Values:  make([][]float64, len(s.Values)),
	}
	for c, col := range s.Values {
		out.Values[c] = slices.Clone(col)
	}
	return out
}

// Select returns the named columns in the requested order.
func (s Series) Select(columns ...string) (Series, error) {
	out := Series{
		Dates:   slices.Clone(s.Dates),
		Columns: slices.Clone(columns),
		Values:  make([][]float64, len(columns)),
	}
	for i, name := range columns {
		col, err := s.Column(name)
		if err != nil {
			return Series{}, err
		}
		out.Values[i] = col
	}
	return out, nil
}

// Between returns the rows dated within [from, to]. A zero bound is open.
func (s Series) Between(from, to time.Time) Series {
	lo, hi := 0, len(s.Dates)
	if !from.IsZero() {
		lo, _ = slices.BinarySearchFunc(s.Dates, from, compareTime)
	}
	if !to.IsZero() {
		var found bool
		hi, found = slices.BinarySearchFunc(s.Dates, to, compareTime)
		if found {
			hi++
		}
	}
	if hi < lo {
		hi = lo
	}
	return s.rows(lo, hi)
}

// Head returns the first n rows (all rows when n exceeds the length).
func (s Series) Head(n int) Series {
	return s.rows(0, max(0, min(n, s.Len())))
}

// Rename returns a copy with columns renamed through f.
func (s Series) Rename(f func(string) string) Series {
	out := s.Clone()
	for i, name := range out.Columns {
		out.Columns[i] = f(name)
	}
	return out
}

func (s Series) rows(lo, hi int) Series {
	out := Series{
		Dates:   slices.Clone(s.Dates[lo:hi]),
		Columns: slices.Clone(s.Columns),
		Values:  make([][]float64, len(s.Values)),
	}
	for c, col := range s.Values {
		out.Values[c] = slices.Clone(col[lo:hi])
	}
	return out
}

// mapColumns applies f to a copy of every column.
func (s Series) mapColumns(f func([]float64) []float64) Series {
	out := Series{
		Dates:   slices.Clone(s.Dates),
		Columns: slices.Clone(s.Columns),
		Values:  make([][]float64, len(s.Values)),
	}
	for c, col := range s.Values {
		out.Values[c] = f(col)
	}
	return out
}

func (s Series) dateIndex(d time.Time) int {
	i, found := slices.BinarySearchFunc(s.Dates, d, compareTime)
	if !found {
		return -1
	}
	return i
}

// checkAligned verifies that a and b share dates and column set.
func checkAligned(a, b Series) error {
	if len(a.Dates) != len(b.Dates) {
		return fmt.Errorf("%w: %d rows vs %d rows", ErrAlignment, len(a.Dates), len(b.Dates))
	}
	for i := range a.Dates {
		if !a.Dates[i].Equal(b.Dates[i]) {
			return fmt.Errorf("%w: row %d dated %s vs %s", ErrAlignment, i,
				a.Dates[i].Format(DateLayout), b.Dates[i].Format(DateLayout))
		}
	}
	if len(a.Columns) != len(b.Columns) {
		return fmt.Errorf("%w: columns %v vs %v", ErrAlignment, a.Columns, b.Columns)
	}
	for _, name := range a.Columns {
		if b.ColumnIndex(name) < 0 {
			return fmt.Errorf("%w: column %q missing from right operand", ErrAlignment, name)
		}
	}
	return nil
}

func compareTime(a, b time.Time) int { return a.Compare(b) }
