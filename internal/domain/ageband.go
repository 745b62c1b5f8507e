package domain

import (
	"fmt"
	"slices"
	"strconv"
)

// MaxAge is the synthetic upper edge of every partition.
const MaxAge = 120

// Labels of the fixed partition in which hospital admissions are published.
const (
	BandUnder18 = "0-17 yrs"
	Band18To64  = "18-64 yrs"
	Band65To84  = "65-84 yrs"
	Band85Plus  = "85+ yrs"
)

// AdmissionBands is the fixed four-band partition shared by the national
// cases, vaccination and admissions series.
var AdmissionBands = mustPartition(18, 65, 85)

// AgeBand is the half-open age interval [Start, End). The last band of a
// partition has End == MaxAge and is labelled "{Start}+ yrs".
type AgeBand struct {
	Start int
	End   int
	Label string
}

// Contains reports whether age falls inside the band.
func (b AgeBand) Contains(age int) bool {
	return age >= b.Start && age < b.End
}

// OpenEnded reports whether the band runs to MaxAge.
func (b AgeBand) OpenEnded() bool { return b.End >= MaxAge }

// Partition is an ordered set of contiguous bands covering [0, MaxAge).
type Partition []AgeBand

// NewPartition builds the partition cut at the given divider ages. Dividers
// are sorted and deduplicated; each must lie strictly inside (0, MaxAge).
// No dividers yields the single band "0+ yrs".
func NewPartition(dividers []int) (Partition, error) {
	edges := slices.Clone(dividers)
	slices.Sort(edges)
	edges = slices.Compact(edges)
	for _, d := range edges {
		if d <= 0 || d >= MaxAge {
			return nil, fmt.Errorf("%w: age divider %d outside (0, %d)", ErrInvalidParameter, d, MaxAge)
		}
	}

	edges = append([]int{0}, edges...)
	edges = append(edges, MaxAge)

	p := make(Partition, 0, len(edges)-1)
	for i := 0; i < len(edges)-2; i++ {
		p = append(p, AgeBand{
			Start: edges[i],
			End:   edges[i+1],
			Label: fmt.Sprintf("%d-%d yrs", edges[i], edges[i+1]-1),
		})
	}
	last := edges[len(edges)-2]
	p = append(p, AgeBand{Start: last, End: MaxAge, Label: fmt.Sprintf("%d+ yrs", last)})
	return p, nil
}

func mustPartition(dividers ...int) Partition {
	p, err := NewPartition(dividers)
	if err != nil {
		panic(err)
	}
	return p
}

// Labels returns the band labels in order.
func (p Partition) Labels() []string {
	out := make([]string, len(p))
	for i, b := range p {
		out[i] = b.Label
	}
	return out
}

// Dividers returns the inner edges the partition was built from.
func (p Partition) Dividers() []int {
	if len(p) == 0 {
		return nil
	}
	out := make([]int, 0, len(p)-1)
	for _, b := range p[1:] {
		out = append(out, b.Start)
	}
	return out
}

// Locate returns the band containing age.
func (p Partition) Locate(age int) (AgeBand, error) {
	for _, b := range p {
		if b.Contains(age) {
			return b, nil
		}
	}
	return AgeBand{}, fmt.Errorf("%w: age %d outside [0, %d)", ErrUnknownAgeBand, age, MaxAge)
}

// StartAge reads the starting age encoded in the first two characters of a
// feed age subdivision, e.g. "05_09" -> 5, "90+" -> 90.
func StartAge(subdivision string) (int, error) {
	if len(subdivision) < 2 {
		return 0, fmt.Errorf("%w: age subdivision %q", ErrUnknownAgeBand, subdivision)
	}
	age, err := strconv.Atoi(subdivision[:2])
	if err != nil || age < 0 {
		return 0, fmt.Errorf("%w: age subdivision %q", ErrUnknownAgeBand, subdivision)
	}
	return age, nil
}

// BinnedCase is a cleaned case observation assigned to a band.
type BinnedCase struct {
	CaseObservation
	Band AgeBand
}

// BinAges assigns every observation to the band of p containing its starting age.
func BinAges(obs []CaseObservation, p Partition) ([]BinnedCase, error) {
	out := make([]BinnedCase, 0, len(obs))
	for _, o := range obs {
		age, err := StartAge(o.Age)
		if err != nil {
			return nil, err
		}
		band, err := p.Locate(age)
		if err != nil {
			return nil, err
		}
		out = append(out, BinnedCase{CaseObservation: o, Band: band})
	}
	return out, nil
}
