package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// TeenSplitUnder18 is the share of the cases feed's 15_19 bucket credited to
// the 0-17 band; the remainder goes to 18-64. It approximates the 15-17 vs
// 18-19 split the feed does not publish.
const TeenSplitUnder18 = 0.6

// Suffixes distinguishing the two dose tables once joined.
const (
	Dose1Suffix = " dose1"
	Dose2Suffix = " dose2"
)

// CaseAgeSubdivisions is the 5-year vocabulary of the cases feed.
var CaseAgeSubdivisions = []string{
	"00_04", "05_09", "10_14", "15_19",
	"20_24", "25_29", "30_34", "35_39",
	"40_44", "45_49", "50_54", "55_59",
	"60_64", "65_69", "70_74", "75_79",
	"80_84", "85_89", "90+",
}

// VaccinationAgeSubdivisions is the adult vocabulary of the vaccinations feed.
// Younger buckets are not carried; the 0-17 band is always zero.
var VaccinationAgeSubdivisions = []string{
	"18_24", "25_29", "30_34", "35_39",
	"40_44", "45_49", "50_54", "55_59",
	"60_64", "65_69", "70_74", "75_79",
	"80_84", "85_89", "90+",
}

// AdmissionAgeSubdivisions is the named band vocabulary of the admissions feed.
var AdmissionAgeSubdivisions = []string{"0_to_5", "6_to_17", "18_to_64", "65_to_84", "85+"}

// DoseColumn returns the joined vaccination column for band label and dose 1 or 2.
func DoseColumn(label string, dose int) string {
	if dose == 2 {
		return label + Dose2Suffix
	}
	return label + Dose1Suffix
}

type share struct {
	column string
	weight float64
}

type bandSource struct {
	label string
	parts []share
}

// bandMapping folds feed subdivisions into AdmissionBands. When skipMissing
// is set a missing cell contributes nothing; otherwise it makes the band
// missing.
type bandMapping struct {
	skipMissing bool
	bands       []bandSource
}

func whole(columns ...string) []share {
	out := make([]share, len(columns))
	for i, c := range columns {
		out[i] = share{column: c, weight: 1}
	}
	return out
}

var caseBands = bandMapping{
	skipMissing: true,
	bands: []bandSource{
		{BandUnder18, append(whole("00_04", "05_09", "10_14"), share{"15_19", TeenSplitUnder18})},
		{Band18To64, append([]share{{"15_19", 1 - TeenSplitUnder18}},
			whole("20_24", "25_29", "30_34", "35_39", "40_44", "45_49", "50_54", "55_59", "60_64")...)},
		{Band65To84, whole("65_69", "70_74", "75_79", "80_84")},
		{Band85Plus, whole("85_89", "90+")},
	},
}

var vaccinationBands = bandMapping{
	skipMissing: true,
	bands: []bandSource{
		{BandUnder18, nil},
		{Band18To64, whole("18_24", "25_29", "30_34", "35_39", "40_44", "45_49", "50_54", "55_59", "60_64")},
		{Band65To84, whole("65_69", "70_74", "75_79", "80_84")},
		{Band85Plus, whole("85_89", "90+")},
	},
}

var admissionBands = bandMapping{
	bands: []bandSource{
		{BandUnder18, whole("0_to_5", "6_to_17")},
		{Band18To64, whole("18_to_64")},
		{Band65To84, whole("65_to_84")},
		{Band85Plus, whole("85+")},
	},
}

// apply builds the banded series. Every source column must be present in s.
func (m bandMapping) apply(s Series) (Series, error) {
	labels := make([]string, len(m.bands))
	for i, b := range m.bands {
		labels[i] = b.label
	}
	out := NewSeries(s.Dates, labels, 0)
	for i, b := range m.bands {
		dst := out.Values[i]
		for _, part := range b.parts {
			c := s.ColumnIndex(part.column)
			if c < 0 {
				return Series{}, fmt.Errorf("%w: age subdivision %q absent from feed", ErrSchema, part.column)
			}
			for row, v := range s.Values[c] {
				if math.IsNaN(v) && m.skipMissing {
					continue
				}
				dst[row] += part.weight * v
			}
		}
	}
	return out, nil
}

// longCell is one (date, key, value) triple awaiting a pivot.
type longCell struct {
	date  time.Time
	key   string
	value float64
}

// pivot reshapes long cells to a wide series: one row per distinct date in
// ascending order, one column per key. Duplicate (date, key) pairs are summed
// and absent pairs are NaN. When columns is nil the observed keys are used
// in sorted order.
func pivot(cells []longCell, columns []string) Series {
	var dates []time.Time
	seen := make(map[time.Time]bool)
	keys := make(map[string]bool)
	for _, c := range cells {
		if !seen[c.date] {
			seen[c.date] = true
			dates = append(dates, c.date)
		}
		keys[c.key] = true
	}
	slices.SortFunc(dates, compareTime)

	if columns == nil {
		for k := range keys {
			columns = append(columns, k)
		}
		slices.Sort(columns)
	}

	out := NewSeries(dates, columns, math.NaN())
	for _, c := range cells {
		col := out.ColumnIndex(c.key)
		if col < 0 {
			continue
		}
		row := out.dateIndex(c.date)
		if math.IsNaN(out.Values[col][row]) {
			out.Values[col][row] = c.value
		} else {
			out.Values[col][row] += c.value
		}
	}
	return out
}

// parseFeedDate parses an ISO date and reports whether it falls after the
// BaselineCutoff.
func parseFeedDate(raw string) (time.Time, bool, error) {
	d, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, d.After(BaselineCutoff), nil
}

// CleanCases parses dates, drops rows on or before BaselineCutoff and keeps
// only the CaseAgeSubdivisions vocabulary.
func CleanCases(records []CaseRecord) ([]CaseObservation, error) {
	out := make([]CaseObservation, 0, len(records))
	for i, r := range records {
		d, keep, err := parseFeedDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("clean cases row %d: %w", i, err)
		}
		if !keep || !slices.Contains(CaseAgeSubdivisions, r.Age) {
			continue
		}
		out = append(out, CaseObservation{Region: r.AreaName, Date: d, Age: r.Age, Cases: r.Cases})
	}
	return out, nil
}

// CasesByAdmissionBand pivots cleaned national cases by subdivision and
// re-buckets them into AdmissionBands, splitting 15_19 by TeenSplitUnder18.
func CasesByAdmissionBand(obs []CaseObservation) (Series, error) {
	cells := make([]longCell, len(obs))
	for i, o := range obs {
		cells[i] = longCell{date: o.Date, key: o.Age, value: o.Cases}
	}
	out, err := caseBands.apply(pivot(cells, nil))
	if err != nil {
		return Series{}, fmt.Errorf("band cases: %w", err)
	}
	return out, nil
}

// PrepareCases turns the national cases feed into daily cases per 10k by
// AdmissionBands.
func PrepareCases(records []CaseRecord, pop Population) (Series, error) {
	obs, err := CleanCases(records)
	if err != nil {
		return Series{}, err
	}
	banded, err := CasesByAdmissionBand(obs)
	if err != nil {
		return Series{}, err
	}
	return PerPopulation(banded, pop, PerTenThousand)
}

// VaccinationsByAdmissionBand cleans the vaccinations feed and returns the
// cumulative first and second dose counts by AdmissionBands.
func VaccinationsByAdmissionBand(records []VaccinationRecord) (dose1, dose2 Series, err error) {
	var first, second []longCell
	for i, r := range records {
		d, keep, err := parseFeedDate(r.Date)
		if err != nil {
			return Series{}, Series{}, fmt.Errorf("clean vaccinations row %d: %w", i, err)
		}
		if !keep || !slices.Contains(VaccinationAgeSubdivisions, r.Age) {
			continue
		}
		first = append(first, longCell{date: d, key: r.Age, value: r.CumFirstDose})
		second = append(second, longCell{date: d, key: r.Age, value: r.CumSecondDose})
	}
	if dose1, err = vaccinationBands.apply(pivot(first, nil)); err != nil {
		return Series{}, Series{}, fmt.Errorf("band first doses: %w", err)
	}
	if dose2, err = vaccinationBands.apply(pivot(second, nil)); err != nil {
		return Series{}, Series{}, fmt.Errorf("band second doses: %w", err)
	}
	return dose1, dose2, nil
}

// JoinDoses inner-joins the two dose tables on date, suffixing their columns
// with Dose1Suffix and Dose2Suffix.
func JoinDoses(dose1, dose2 Series) Series {
	var dates []time.Time
	var rows1, rows2 []int
	for i, d := range dose1.Dates {
		if j := dose2.dateIndex(d); j >= 0 {
			dates = append(dates, d)
			rows1 = append(rows1, i)
			rows2 = append(rows2, j)
		}
	}

	columns := make([]string, 0, len(dose1.Columns)+len(dose2.Columns))
	for _, c := range dose1.Columns {
		columns = append(columns, c+Dose1Suffix)
	}
	for _, c := range dose2.Columns {
		columns = append(columns, c+Dose2Suffix)
	}

	out := NewSeries(dates, columns, math.NaN())
	for c := range dose1.Columns {
		for i, row := range rows1 {
			out.Values[c][i] = dose1.Values[c][row]
		}
	}
	offset := len(dose1.Columns)
	for c := range dose2.Columns {
		for i, row := range rows2 {
			out.Values[offset+c][i] = dose2.Values[c][row]
		}
	}
	return out
}

// PrepareVaccinations turns the vaccinations feed into cumulative people
// vaccinated per 10k by AdmissionBands, with dose1 and dose2 columns.
func PrepareVaccinations(records []VaccinationRecord, pop Population) (Series, error) {
	dose1, dose2, err := VaccinationsByAdmissionBand(records)
	if err != nil {
		return Series{}, err
	}
	if dose1, err = PerPopulation(dose1, pop, PerTenThousand); err != nil {
		return Series{}, err
	}
	if dose2, err = PerPopulation(dose2, pop, PerTenThousand); err != nil {
		return Series{}, err
	}
	return JoinDoses(dose1, dose2), nil
}

// AdmissionsByAdmissionBand cleans the cumulative admissions feed, differences
// it into new admissions per day and folds 0_to_5 and 6_to_17 into 0-17. The
// first row is missing.
func AdmissionsByAdmissionBand(records []AdmissionRecord) (Series, error) {
	cells := make([]longCell, 0, len(records))
	for i, r := range records {
		d, keep, err := parseFeedDate(r.Date)
		if err != nil {
			return Series{}, fmt.Errorf("clean admissions row %d: %w", i, err)
		}
		if !keep || !slices.Contains(AdmissionAgeSubdivisions, r.Age) {
			continue
		}
		cells = append(cells, longCell{date: d, key: r.Age, value: r.Value})
	}
	out, err := admissionBands.apply(Diff(pivot(cells, nil)))
	if err != nil {
		return Series{}, fmt.Errorf("band admissions: %w", err)
	}
	return out, nil
}

// PrepareAdmissions turns the admissions feed into new admissions per 10k by
// AdmissionBands.
func PrepareAdmissions(records []AdmissionRecord, pop Population) (Series, error) {
	banded, err := AdmissionsByAdmissionBand(records)
	if err != nil {
		return Series{}, err
	}
	return PerPopulation(banded, pop, PerTenThousand)
}

// BinRegionCases bins cleaned regional cases into p and pivots them to one
// column per band for the selected region, or summed across every region.
// Bands with no observations on a date are zero. A single region with no
// rows is ErrUnknownRegion.
func BinRegionCases(obs []CaseObservation, p Partition, sel RegionSelector) (Series, error) {
	binned, err := BinAges(obs, p)
	if err != nil {
		return Series{}, fmt.Errorf("bin region cases: %w", err)
	}
	cells := make([]longCell, 0, len(binned))
	for _, b := range binned {
		if !sel.Matches(b.Region) {
			continue
		}
		cells = append(cells, longCell{date: b.Date, key: b.Band.Label, value: b.Cases})
	}
	if len(cells) == 0 && sel.Scope == ScopeSingleRegion {
		return Series{}, fmt.Errorf("%w: no cases for %q", ErrUnknownRegion, sel.Name)
	}

	out := pivot(cells, p.Labels())
	for _, col := range out.Values {
		for i, v := range col {
			if math.IsNaN(v) {
				col[i] = 0
			}
		}
	}
	return out, nil
}

// Regions lists region names in first-seen order followed by NationalAggregate.
func Regions(obs []CaseObservation) []string {
	var out []string
	seen := make(map[string]bool)
	for _, o := range obs {
		if o.Region == "" || o.Region == NationalAggregate || seen[o.Region] {
			continue
		}
		seen[o.Region] = true
		out = append(out, o.Region)
	}
	return append(out, NationalAggregate)
}
