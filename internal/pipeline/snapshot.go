package pipeline

import (
	"fmt"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/google/uuid"
)

// Snapshot is the immutable data context every query runs against. It is
// built once per refresh and never modified afterwards, so it can be shared
// freely between goroutines.
type Snapshot struct {
	ID      string
	BuiltAt time.Time

	// National series per 10k by AdmissionBands on one gap-free daily
	// calendar ending at the last date common to all three feeds.
	Cases        domain.Series
	Vaccinations domain.Series
	Admissions   domain.Series

	// Regions lists the selectable regions, NationalAggregate last.
	Regions []string
	// Dates are the selectable start boundaries: month starts then the last date.
	Dates []time.Time

	regionCases      []domain.CaseObservation
	regionPopulation []domain.RegionPopulation
}

// BuildSnapshot prepares every national series, equalises their end dates
// and lays them out on a shared calendar starting at the earliest first date.
func BuildSnapshot(feeds domain.Feeds, builtAt time.Time) (*Snapshot, error) {
	nationPop, err := domain.NationPopulation(feeds.NationPopulation)
	if err != nil {
		return nil, fmt.Errorf("nation population: %w", err)
	}

	cases, err := domain.PrepareCases(feeds.NationCases, nationPop)
	if err != nil {
		return nil, fmt.Errorf("prepare cases: %w", err)
	}
	vaccinations, err := domain.PrepareVaccinations(feeds.Vaccinations, nationPop)
	if err != nil {
		return nil, fmt.Errorf("prepare vaccinations: %w", err)
	}
	admissions, err := domain.PrepareAdmissions(feeds.Admissions, nationPop)
	if err != nil {
		return nil, fmt.Errorf("prepare admissions: %w", err)
	}

	equal, err := domain.EqualizeEndDates(cases, vaccinations, admissions)
	if err != nil {
		return nil, fmt.Errorf("equalize end dates: %w", err)
	}

	var start time.Time
	for i, s := range equal {
		first, err := s.FirstDate()
		if err != nil {
			return nil, fmt.Errorf("series %d after equalizing: %w", i, err)
		}
		if i == 0 || first.Before(start) {
			start = first
		}
	}
	for i := range equal {
		if equal[i], err = domain.BackfillStart(equal[i], start); err != nil {
			return nil, err
		}
	}

	regionCases, err := domain.CleanCases(feeds.RegionCases)
	if err != nil {
		return nil, fmt.Errorf("clean region cases: %w", err)
	}

	last, _ := equal[0].LastDate()
	return &Snapshot{
		ID:               uuid.NewString(),
		BuiltAt:          builtAt,
		Cases:            equal[0],
		Vaccinations:     equal[1],
		Admissions:       equal[2],
		Regions:          domain.Regions(regionCases),
		Dates:            selectableDates(last),
		regionCases:      regionCases,
		regionPopulation: feeds.RegionPopulation,
	}, nil
}

// LastDate is the final date of the national series.
func (s *Snapshot) LastDate() time.Time {
	last, _ := s.Cases.LastDate()
	return last
}

func selectableDates(last time.Time) []time.Time {
	dates := domain.MonthStarts(domain.SeriesStart, last)
	if n := len(dates); n == 0 || !dates[n-1].Equal(last) {
		dates = append(dates, last)
	}
	return dates
}
