package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
)

// Column names of the published feeds.
const (
	colAreaName   = "areaName"
	colDate       = "date"
	colAge        = "age"
	colCases      = "cases"
	colFirstDose  = "cumPeopleVaccinatedFirstDoseByVaccinationDate"
	colSecondDose = "cumPeopleVaccinatedSecondDoseByVaccinationDate"
	colValue      = "value"
	colName       = "Name"
	colPopulation = "population"
)

// table is a CSV file with its header indexed by column name.
type table struct {
	name   string
	colIdx map[string]int
	rows   [][]string
}

func readTable(r io.Reader, name string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s csv: %w", name, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %s has no header", domain.ErrSchema, name)
	}

	colIdx := make(map[string]int, len(all[0]))
	for i, h := range all[0] {
		colIdx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return &table{name: name, colIdx: colIdx, rows: all[1:]}, nil
}

// require returns the indices of cols, failing on the first absent one.
func (t *table) require(cols ...string) ([]int, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, ok := t.colIdx[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s is missing column %q", domain.ErrSchema, t.name, c)
		}
		idx[i] = j
	}
	return idx, nil
}

func (t *table) cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// number parses a numeric cell. Empty cells are missing values.
func (t *table) number(row []string, i, line int) (float64, error) {
	s := t.cell(row, i)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s line %d: %q is not a number", domain.ErrSchema, t.name, line, s)
	}
	return v, nil
}

// ParseCases reads a cases-by-age demographics CSV.
func ParseCases(r io.Reader) ([]domain.CaseRecord, error) {
	t, err := readTable(r, "cases")
	if err != nil {
		return nil, err
	}
	idx, err := t.require(colAreaName, colDate, colAge, colCases)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CaseRecord, 0, len(t.rows))
	for n, row := range t.rows {
		cases, err := t.number(row, idx[3], n+2)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.CaseRecord{
			AreaName: t.cell(row, idx[0]),
			Date:     t.cell(row, idx[1]),
			Age:      t.cell(row, idx[2]),
			Cases:    cases,
		})
	}
	return out, nil
}

// ParseVaccinations reads a vaccinations-by-age demographics CSV.
func ParseVaccinations(r io.Reader) ([]domain.VaccinationRecord, error) {
	t, err := readTable(r, "vaccinations")
	if err != nil {
		return nil, err
	}
	idx, err := t.require(colDate, colAge, colFirstDose, colSecondDose)
	if err != nil {
		return nil, err
	}

	out := make([]domain.VaccinationRecord, 0, len(t.rows))
	for n, row := range t.rows {
		first, err := t.number(row, idx[2], n+2)
		if err != nil {
			return nil, err
		}
		second, err := t.number(row, idx[3], n+2)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.VaccinationRecord{
			Date:          t.cell(row, idx[0]),
			Age:           t.cell(row, idx[1]),
			CumFirstDose:  first,
			CumSecondDose: second,
		})
	}
	return out, nil
}

// ParseAdmissions reads a cumulative admissions-by-age CSV.
func ParseAdmissions(r io.Reader) ([]domain.AdmissionRecord, error) {
	t, err := readTable(r, "admissions")
	if err != nil {
		return nil, err
	}
	idx, err := t.require(colDate, colAge, colValue)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AdmissionRecord, 0, len(t.rows))
	for n, row := range t.rows {
		v, err := t.number(row, idx[2], n+2)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.AdmissionRecord{
			Date:  t.cell(row, idx[0]),
			Age:   t.cell(row, idx[1]),
			Value: v,
		})
	}
	return out, nil
}

// populationAges are the single-year columns of the region population file.
func populationAges() []string {
	ages := make([]string, 0, domain.TopCodedAge+1)
	for a := 0; a < domain.TopCodedAge; a++ {
		ages = append(ages, strconv.Itoa(a))
	}
	return append(ages, strconv.Itoa(domain.TopCodedAge)+"+")
}

// ParseRegionPopulation reads the population-by-region file. Columns other
// than Name and the single-year ages are ignored.
func ParseRegionPopulation(r io.Reader) ([]domain.RegionPopulation, error) {
	t, err := readTable(r, "region population")
	if err != nil {
		return nil, err
	}
	ages := populationAges()
	idx, err := t.require(append([]string{colName}, ages...)...)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RegionPopulation, 0, len(t.rows))
	for n, row := range t.rows {
		byAge := make(map[string]float64, len(ages))
		for i, age := range ages {
			v, err := t.number(row, idx[i+1], n+2)
			if err != nil {
				return nil, err
			}
			byAge[age] = v
		}
		out = append(out, domain.RegionPopulation{Name: t.cell(row, idx[0]), ByAge: byAge})
	}
	return out, nil
}

// ParseNationPopulation reads the national population file: an age column
// plus a count column. The count column is "population" when present,
// otherwise the first column that is not the age.
func ParseNationPopulation(r io.Reader) ([]domain.AgePopulation, error) {
	t, err := readTable(r, "nation population")
	if err != nil {
		return nil, err
	}
	idx, err := t.require(colAge)
	if err != nil {
		return nil, err
	}
	ageIdx := idx[0]
	countIdx, ok := t.colIdx[colPopulation]
	if !ok {
		countIdx = -1
		for _, i := range t.colIdx {
			if i != ageIdx && (countIdx < 0 || i < countIdx) {
				countIdx = i
			}
		}
	}
	if countIdx < 0 {
		return nil, fmt.Errorf("%w: nation population has no count column", domain.ErrSchema)
	}

	out := make([]domain.AgePopulation, 0, len(t.rows))
	for n, row := range t.rows {
		v, err := t.number(row, countIdx, n+2)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.AgePopulation{Age: t.cell(row, ageIdx), Count: v})
	}
	return out, nil
}

// formatNumber writes missing values as empty cells.
func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteCases encodes case records in the published column layout.
func WriteCases(w io.Writer, recs []domain.CaseRecord) error {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{r.AreaName, r.Date, r.Age, formatNumber(r.Cases)}
	}
	return writeRows(w, []string{colAreaName, colDate, colAge, colCases}, rows)
}

// WriteVaccinations encodes vaccination records in the published column layout.
func WriteVaccinations(w io.Writer, recs []domain.VaccinationRecord) error {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{r.Date, r.Age, formatNumber(r.CumFirstDose), formatNumber(r.CumSecondDose)}
	}
	return writeRows(w, []string{colDate, colAge, colFirstDose, colSecondDose}, rows)
}

// WriteAdmissions encodes admission records in the published column layout.
func WriteAdmissions(w io.Writer, recs []domain.AdmissionRecord) error {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{r.Date, r.Age, formatNumber(r.Value)}
	}
	return writeRows(w, []string{colDate, colAge, colValue}, rows)
}

// WriteRegionPopulation encodes one row per region with single-year columns.
func WriteRegionPopulation(w io.Writer, recs []domain.RegionPopulation) error {
	ages := populationAges()
	rows := make([][]string, len(recs))
	for i, r := range recs {
		row := make([]string, 0, len(ages)+1)
		row = append(row, r.Name)
		for _, age := range ages {
			row = append(row, formatNumber(r.ByAge[age]))
		}
		rows[i] = row
	}
	return writeRows(w, append([]string{colName}, ages...), rows)
}

// WriteNationPopulation encodes one row per single year of age.
func WriteNationPopulation(w io.Writer, recs []domain.AgePopulation) error {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{r.Age, formatNumber(r.Count)}
	}
	return writeRows(w, []string{colAge, colPopulation}, rows)
}
