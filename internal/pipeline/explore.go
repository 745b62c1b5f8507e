package pipeline

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
)

// Columns of the lag analysis table.
const (
	LagCases       = "cases"
	LagAdmissions  = "admissions"
	LagDose1       = "dose1"
	LagDose2       = "dose2"
	LagRatio       = "ratio"
	LagScaledCases = "scaled_cases"
	LagDays        = "days"
)

var lagColumns = []string{LagCases, LagAdmissions, LagDose1, LagDose2, LagRatio, LagScaledCases, LagDays}

// CaseQuery selects regional cases re-binned into a caller-chosen partition.
type CaseQuery struct {
	Region          domain.RegionSelector
	Start           time.Time
	Rolling         int
	GrowthInterval  int
	GrowthSmoothing int
	Dividers        []int
}

// CaseResult holds the rolling per-10k rates and their smoothed growth rates,
// both truncated to the query start.
type CaseResult struct {
	PerPopulation domain.Series
	Growth        domain.Series
}

// VaccinationQuery selects cumulative dose coverage for a set of bands.
type VaccinationQuery struct {
	Start time.Time
	Bands []string
}

// RatioQuery compares admissions Offset days ahead with today's cases.
type RatioQuery struct {
	Start   time.Time
	Rolling int
	Offset  int
	Bands   []string
}

// LagQuery relates lagged admissions to cases and vaccination coverage for
// one band over [Start, End].
type LagQuery struct {
	Start   time.Time
	End     time.Time
	Rolling int
	Lag     int
	Band    string
}

// DefaultCaseQuery mirrors the dashboard's initial selection.
func DefaultCaseQuery(s *Snapshot) CaseQuery {
	return CaseQuery{
		Region:          domain.AllRegions(),
		Start:           defaultStart(s),
		Rolling:         7,
		GrowthInterval:  21,
		GrowthSmoothing: 5,
		Dividers:        []int{20, 40, 60},
	}
}

// DefaultRatioQuery mirrors the dashboard's initial selection.
func DefaultRatioQuery(s *Snapshot) RatioQuery {
	return RatioQuery{Start: defaultStart(s), Rolling: 14, Offset: 7, Bands: []string{domain.Band65To84}}
}

// DefaultLagQuery mirrors the dashboard's initial selection.
func DefaultLagQuery(s *Snapshot) LagQuery {
	return LagQuery{Start: defaultStart(s), End: s.LastDate(), Rolling: 14, Lag: 7, Band: domain.Band65To84}
}

// defaultStart is the fourth selectable date, skipping the autumn 2020 ramp-up.
func defaultStart(s *Snapshot) time.Time {
	if len(s.Dates) > 3 {
		return s.Dates[3]
	}
	if len(s.Dates) > 0 {
		return s.Dates[0]
	}
	return time.Time{}
}

// CaseAnalysis bins regional cases by q.Dividers, applies a trailing rolling
// mean, converts it to per-10k rates with the matching regional population
// and derives smoothed growth rates from the rolling counts.
func (s *Snapshot) CaseAnalysis(q CaseQuery) (CaseResult, error) {
	p, err := domain.NewPartition(q.Dividers)
	if err != nil {
		return CaseResult{}, err
	}
	counts, err := domain.BinRegionCases(s.regionCases, p, q.Region)
	if err != nil {
		return CaseResult{}, err
	}
	rolling, err := domain.RollingMean(counts, q.Rolling)
	if err != nil {
		return CaseResult{}, err
	}
	pop, err := domain.AggregatePopulation(s.regionPopulation, q.Region, p)
	if err != nil {
		return CaseResult{}, err
	}
	perPop, err := domain.PerPopulation(rolling, pop, domain.PerTenThousand)
	if err != nil {
		return CaseResult{}, err
	}
	growth, err := domain.GrowthRate(rolling, q.GrowthInterval, q.GrowthSmoothing)
	if err != nil {
		return CaseResult{}, err
	}
	return CaseResult{
		PerPopulation: perPop.Between(q.Start, time.Time{}),
		Growth:        growth.Between(q.Start, time.Time{}),
	}, nil
}

// VaccinationCoverage returns dose1 and dose2 columns per band, backfilled
// with missing values to q.Start when it precedes the rollout.
func (s *Snapshot) VaccinationCoverage(q VaccinationQuery) (domain.Series, error) {
	bands, err := resolveBands(q.Bands)
	if err != nil {
		return domain.Series{}, err
	}
	columns := make([]string, 0, 2*len(bands))
	for _, b := range bands {
		columns = append(columns, domain.DoseColumn(b, 1), domain.DoseColumn(b, 2))
	}
	vax, err := s.Vaccinations.Select(columns...)
	if err != nil {
		return domain.Series{}, err
	}
	if q.Start.IsZero() {
		return vax, nil
	}
	return domain.BackfillStart(vax, q.Start)
}

// AdmissionRatio returns admissions per 10k q.Offset days later divided by
// cases per 10k today, both rolled over q.Rolling days.
func (s *Snapshot) AdmissionRatio(q RatioQuery) (domain.Series, error) {
	bands, err := resolveBands(q.Bands)
	if err != nil {
		return domain.Series{}, err
	}
	if q.Rolling < 1 {
		return domain.Series{}, fmt.Errorf("%w: rolling window %d", domain.ErrInvalidParameter, q.Rolling)
	}
	ratio, err := domain.LaggedRatio(s.Admissions, s.Cases, domain.RatioOptions{
		Offset: q.Offset,
		Window: q.Rolling,
		Start:  q.Start,
	})
	if err != nil {
		return domain.Series{}, err
	}
	return ratio.Select(bands...)
}

// LagAnalysis builds the admissions-versus-cases table for one band. The
// last q.Lag rows are dropped because shifting leaves them without
// admissions.
func (s *Snapshot) LagAnalysis(q LagQuery) (domain.Series, error) {
	if q.Lag < 0 {
		return domain.Series{}, fmt.Errorf("%w: negative lag %d", domain.ErrInvalidParameter, q.Lag)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return domain.Series{}, fmt.Errorf("%w: end %s before start %s", domain.ErrInvalidParameter,
			q.End.Format(domain.DateLayout), q.Start.Format(domain.DateLayout))
	}
	bands, err := resolveBands([]string{q.Band})
	if err != nil {
		return domain.Series{}, err
	}

	admissions, err := s.Admissions.Select(bands...)
	if err != nil {
		return domain.Series{}, err
	}
	cases, err := s.Cases.Select(bands...)
	if err != nil {
		return domain.Series{}, err
	}
	admTotal, err := domain.RollingTotal(domain.Shift(admissions, -q.Lag), q.Start, q.End, q.Rolling)
	if err != nil {
		return domain.Series{}, err
	}
	caseTotal, err := domain.RollingTotal(cases, q.Start, q.End, q.Rolling)
	if err != nil {
		return domain.Series{}, err
	}

	vax, err := s.VaccinationCoverage(VaccinationQuery{Start: q.Start, Bands: bands})
	if err != nil {
		return domain.Series{}, err
	}
	vax = domain.Reindex(vax, caseTotal.Dates)

	out := domain.NewSeries(caseTotal.Dates, lagColumns, math.NaN())
	copy(out.Values[0], caseTotal.Values[0])
	copy(out.Values[1], admTotal.Values[0])
	copy(out.Values[2], vax.Values[0])
	copy(out.Values[3], vax.Values[1])

	scale := nanSum(out.Values[1]) / nanSum(out.Values[0])
	for i, d := range out.Dates {
		c, a := out.Values[0][i], out.Values[1][i]
		out.Values[4][i] = a / c
		out.Values[5][i] = c * scale
		out.Values[6][i] = d.Sub(out.Dates[0]).Hours() / 24
	}

	return out.Head(out.Len() - q.Lag), nil
}

// resolveBands defaults to every admission band and rejects unknown labels.
func resolveBands(bands []string) ([]string, error) {
	labels := domain.AdmissionBands.Labels()
	if len(bands) == 0 {
		return labels, nil
	}
	for _, b := range bands {
		if !slices.Contains(labels, b) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAgeBand, b)
		}
	}
	return bands, nil
}

func nanSum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}
