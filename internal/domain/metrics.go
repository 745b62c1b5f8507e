package domain

import (
	"fmt"
	"math"
	"time"
)

// TotalColumn names the single column produced by RollingTotal.
const TotalColumn = "total"

// DefaultRatioWindow is the rolling window applied before taking ratios.
// Reporting is weekly-cyclic, so multiples of 7 are the sensible choices.
const DefaultRatioWindow = 7

// RollingMean is the trailing simple moving average over window rows. The
// first window-1 rows are NaN, as is any row whose window contains a NaN.
func RollingMean(s Series, window int) (Series, error) {
	if window < 1 {
		return Series{}, fmt.Errorf("%w: rolling window %d", ErrInvalidParameter, window)
	}
	return s.mapColumns(func(col []float64) []float64 {
		return windowMean(col, window, window-1)
	}), nil
}

// CenteredRollingMean averages a window centred on each row: for window w
// the row at t averages t-(w-1-(w-1)/2) .. t+(w-1)/2. Rows whose window runs
// off either end of the series are NaN.
func CenteredRollingMean(s Series, window int) (Series, error) {
	if window < 1 {
		return Series{}, fmt.Errorf("%w: smoothing window %d", ErrInvalidParameter, window)
	}
	return s.mapColumns(func(col []float64) []float64 {
		return windowMean(col, window, window-1-(window-1)/2)
	}), nil
}

// windowMean averages col[i-back .. i-back+window-1] for every i.
func windowMean(col []float64, window, back int) []float64 {
	out := make([]float64, len(col))
	for i := range col {
		lo := i - back
		hi := lo + window
		if lo < 0 || hi > len(col) {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for _, v := range col[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return out
}

// Shift moves values periods rows later (earlier when negative), filling
// vacated rows with NaN. Dates are unchanged.
func Shift(s Series, periods int) Series {
	return s.mapColumns(func(col []float64) []float64 {
		out := make([]float64, len(col))
		for i := range out {
			j := i - periods
			if j < 0 || j >= len(col) {
				out[i] = math.NaN()
				continue
			}
			out[i] = col[j]
		}
		return out
	})
}

// Diff returns the first difference row t minus row t-1; the first row is NaN.
func Diff(s Series) Series {
	return s.combine(Shift(s, 1), func(a, b float64) float64 { return a - b })
}

// GrowthRate computes g(t) = (x(t)/x(t-interval))^(1/interval) - 1 over an
// already-averaged series, then smooths g with a centred rolling mean of
// width smoothing.
func GrowthRate(s Series, interval, smoothing int) (Series, error) {
	if interval < 1 {
		return Series{}, fmt.Errorf("%w: growth interval %d", ErrInvalidParameter, interval)
	}
	lagged := Shift(s, interval)
	exp := 1 / float64(interval)
	raw := s.combine(lagged, func(now, then float64) float64 {
		return math.Pow(now/then, exp) - 1
	})
	return CenteredRollingMean(raw, smoothing)
}

// Divide returns num / den cell by cell. Both operands must share dates and
// column set; den columns are matched to num by label.
func Divide(num, den Series) (Series, error) {
	if err := checkAligned(num, den); err != nil {
		return Series{}, err
	}
	out := num.Clone()
	for c, name := range out.Columns {
		d := den.Values[den.ColumnIndex(name)]
		col := out.Values[c]
		for i := range col {
			col[i] /= d[i]
		}
	}
	return out, nil
}

// RatioOptions parameterise LaggedRatio.
type RatioOptions struct {
	// Offset shifts the numerator so that row t compares num(t+Offset)
	// with den(t).
	Offset int
	// Window is the rolling mean applied to both operands; zero means
	// DefaultRatioWindow.
	Window int
	// Start drops rows before it; zero keeps everything.
	Start time.Time
}

// LaggedRatio divides the rolling means of a shifted numerator and a
// denominator, then truncates to Start. Truncation happens after the rolling
// mean so early rows of the window use history before Start.
func LaggedRatio(num, den Series, opts RatioOptions) (Series, error) {
	if err := checkAligned(num, den); err != nil {
		return Series{}, err
	}
	window := opts.Window
	if window == 0 {
		window = DefaultRatioWindow
	}
	shifted := Shift(num, -opts.Offset)
	numAvg, err := RollingMean(shifted, window)
	if err != nil {
		return Series{}, err
	}
	denAvg, err := RollingMean(den, window)
	if err != nil {
		return Series{}, err
	}
	ratio, err := Divide(numAvg, denAvg)
	if err != nil {
		return Series{}, err
	}
	return ratio.Between(opts.Start, time.Time{}), nil
}

// RollingTotal applies a trailing rolling mean to every column, sums the
// columns of each row into TotalColumn and keeps rows within [start, end].
// A row with any missing column has a missing total.
func RollingTotal(s Series, start, end time.Time, window int) (Series, error) {
	avg, err := RollingMean(s, window)
	if err != nil {
		return Series{}, err
	}
	out := NewSeries(avg.Dates, []string{TotalColumn}, 0)
	total := out.Values[0]
	for _, col := range avg.Values {
		for i, v := range col {
			total[i] += v
		}
	}
	if len(avg.Values) == 0 {
		for i := range total {
			total[i] = math.NaN()
		}
	}
	return out.Between(start, end), nil
}

// combine applies f to aligned cells of s and o, which must share shape and
// column order.
func (s Series) combine(o Series, f func(a, b float64) float64) Series {
	out := s.Clone()
	for c, col := range out.Values {
		for i := range col {
			col[i] = f(col[i], o.Values[c][i])
		}
	}
	return out
}
