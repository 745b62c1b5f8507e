package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

// days returns n consecutive dates starting at start.
func days(t *testing.T, start string, n int) []time.Time {
	t.Helper()
	first := day(t, start)
	return DailyCalendar(first, first.AddDate(0, 0, n-1))
}

// table builds a series from row-major values for readability in tests.
func table(dates []time.Time, columns []string, rows ...[]float64) Series {
	s := NewSeries(dates, columns, nan)
	for i, row := range rows {
		for c, v := range row {
			s.Values[c][i] = v
		}
	}
	return s
}

var floatOpts = cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateEmpty()}

func assertFloats(t *testing.T, want, got []float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, floatOpts); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}
