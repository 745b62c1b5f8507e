package domain

import (
	"fmt"
	"strconv"
)

// NationalAggregate is the display name of the all-regions aggregate.
const NationalAggregate = "England"

// TopCodedAge is the first age folded into the population files' "90+" column.
const TopCodedAge = 90

const topCodedKey = "90+"

// RegionScope distinguishes a single region from the national aggregate.
type RegionScope int

const (
	ScopeAllRegions RegionScope = iota
	ScopeSingleRegion
)

// RegionSelector chooses one region or the sum over every region.
type RegionSelector struct {
	Scope RegionScope
	Name  string
}

// AllRegions selects the national aggregate.
func AllRegions() RegionSelector { return RegionSelector{Scope: ScopeAllRegions} }

// SingleRegion selects exactly the named region.
func SingleRegion(name string) RegionSelector {
	return RegionSelector{Scope: ScopeSingleRegion, Name: name}
}

// ParseRegion maps a display name onto a selector; NationalAggregate and the
// empty string select every region.
func ParseRegion(name string) RegionSelector {
	if name == "" || name == NationalAggregate {
		return AllRegions()
	}
	return SingleRegion(name)
}

func (r RegionSelector) String() string {
	if r.Scope == ScopeAllRegions {
		return NationalAggregate
	}
	return r.Name
}

// Matches reports whether a row for region belongs to the selection.
func (r RegionSelector) Matches(region string) bool {
	return r.Scope == ScopeAllRegions || r.Name == region
}

// Population holds one population count per band label.
type Population struct {
	Region string
	Labels []string
	Counts map[string]float64
}

// Count returns the population for label.
func (p Population) Count(label string) (float64, error) {
	v, ok := p.Counts[label]
	if !ok {
		return 0, fmt.Errorf("%w: no population for %q", ErrSchema, label)
	}
	return v, nil
}

// AggregatePopulation sums single-year region populations into the bands of
// p, for one region or for all regions together. Because the source file is
// top-coded at 90+, dividers above TopCodedAge are rejected.
func AggregatePopulation(rows []RegionPopulation, sel RegionSelector, p Partition) (Population, error) {
	if len(p) == 0 {
		return Population{}, fmt.Errorf("%w: empty partition", ErrInvalidParameter)
	}
	for _, d := range p.Dividers() {
		if d > TopCodedAge {
			return Population{}, fmt.Errorf("%w: age divider %d above top-coded age %d", ErrInvalidParameter, d, TopCodedAge)
		}
	}

	byAge, err := selectRegion(rows, sel)
	if err != nil {
		return Population{}, err
	}

	out := Population{
		Region: sel.String(),
		Labels: p.Labels(),
		Counts: make(map[string]float64, len(p)),
	}
	for i, band := range p {
		hi := band.End
		if i == len(p)-1 {
			hi = TopCodedAge
		}
		var total float64
		for age := band.Start; age < hi; age++ {
			v, err := ageColumn(byAge, strconv.Itoa(age))
			if err != nil {
				return Population{}, err
			}
			total += v
		}
		if i == len(p)-1 {
			v, err := ageColumn(byAge, topCodedKey)
			if err != nil {
				return Population{}, err
			}
			total += v
		}
		out.Counts[band.Label] = total
	}
	return out, nil
}

func selectRegion(rows []RegionPopulation, sel RegionSelector) (map[string]float64, error) {
	if sel.Scope == ScopeSingleRegion {
		for _, r := range rows {
			if r.Name == sel.Name {
				return r.ByAge, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, sel.Name)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no population rows", ErrUnknownRegion)
	}
	sum := make(map[string]float64)
	for _, r := range rows {
		for k, v := range r.ByAge {
			sum[k] += v
		}
	}
	return sum, nil
}

func ageColumn(byAge map[string]float64, key string) (float64, error) {
	v, ok := byAge[key]
	if !ok {
		return 0, fmt.Errorf("%w: population column %q missing", ErrSchema, key)
	}
	return v, nil
}

// NationPopulation groups the national single-year file into AdmissionBands.
func NationPopulation(rows []AgePopulation) (Population, error) {
	out := Population{
		Region: NationalAggregate,
		Labels: AdmissionBands.Labels(),
		Counts: make(map[string]float64, len(AdmissionBands)),
	}
	for _, label := range out.Labels {
		out.Counts[label] = 0
	}
	seen := make(map[int]bool, TopCodedAge+1)
	for _, r := range rows {
		age := TopCodedAge
		if r.Age != topCodedKey {
			a, err := strconv.Atoi(r.Age)
			if err != nil {
				return Population{}, fmt.Errorf("%w: population age %q", ErrSchema, r.Age)
			}
			age = a
		}
		band, err := AdmissionBands.Locate(age)
		if err != nil {
			return Population{}, err
		}
		out.Counts[band.Label] += r.Count
		seen[age] = true
	}
	for age := 0; age <= TopCodedAge; age++ {
		if seen[age] {
			continue
		}
		key := strconv.Itoa(age)
		if age == TopCodedAge {
			key = topCodedKey
		}
		return Population{}, fmt.Errorf("%w: population age %q missing", ErrSchema, key)
	}
	return out, nil
}
