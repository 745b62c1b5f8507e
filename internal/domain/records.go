package domain

import "time"

// CaseRecord is one row of the cases-by-age demographics feed.
type CaseRecord struct {
	AreaName string
	Date     string
	Age      string
	Cases    float64
}

// VaccinationRecord is one row of the vaccinations-by-age feed. Both dose
// counts are cumulative people vaccinated by vaccination date.
type VaccinationRecord struct {
	Date          string
	Age           string
	CumFirstDose  float64
	CumSecondDose float64
}

// AdmissionRecord is one row of the cumulative admissions-by-age feed.
type AdmissionRecord struct {
	Date  string
	Age   string
	Value float64
}

// RegionPopulation is one row of the population-by-region file: single-year
// counts keyed "0".."89" plus the top-coded "90+".
type RegionPopulation struct {
	Name  string
	ByAge map[string]float64
}

// AgePopulation is one row of the national population file.
type AgePopulation struct {
	Age   string
	Count float64
}

// Feeds is everything the loading collaborator materialises before a
// snapshot is built.
type Feeds struct {
	RegionCases      []CaseRecord
	NationCases      []CaseRecord
	Vaccinations     []VaccinationRecord
	Admissions       []AdmissionRecord
	RegionPopulation []RegionPopulation
	NationPopulation []AgePopulation
}

// CaseObservation is a cleaned case record.
type CaseObservation struct {
	Region string
	Date   time.Time
	Age    string
	Cases  float64
}
