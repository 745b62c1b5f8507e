// Package mockfeed generates deterministic synthetic feeds that honour every
// column contract of the real sources. The shapes are smooth waves with a
// weekly reporting cycle, so every derived metric has finite, non-trivial
// values once warm-up rows are past.
package mockfeed

import (
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
)

// EnglandRegions are the nine English regions of the regional cases feed.
var EnglandRegions = []string{
	"East Midlands", "East of England", "London", "North East", "North West",
	"South East", "South West", "West Midlands", "Yorkshire and The Humber",
}

// Options control the generated date range and regions.
type Options struct {
	Start            time.Time
	End              time.Time
	VaccinationStart time.Time
	Regions          []string
}

// DefaultOptions start a week before the baseline cutoff so cleaning has
// rows to drop.
func DefaultOptions() Options {
	return Options{
		Start:            time.Date(2020, time.July, 25, 0, 0, 0, 0, time.UTC),
		End:              time.Date(2021, time.March, 31, 0, 0, 0, 0, time.UTC),
		VaccinationStart: time.Date(2020, time.December, 8, 0, 0, 0, 0, time.UTC),
		Regions:          EnglandRegions,
	}
}

// extraCaseAges are aggregate buckets the real cases feed also publishes.
var extraCaseAges = []string{"00_59", "60+", "unassigned"}

// extraVaccinationAges are published but fall outside the carried vocabulary.
var extraVaccinationAges = []string{"12_15", "16_17"}

// Generate builds the full set of feeds for o.
func Generate(o Options) domain.Feeds {
	calendar := domain.DailyCalendar(o.Start, o.End)
	regionPop := regionPopulation(o.Regions)

	return domain.Feeds{
		RegionCases:      regionCases(calendar, o.Regions),
		NationCases:      nationCases(calendar, o.Regions),
		Vaccinations:     vaccinations(domain.DailyCalendar(o.VaccinationStart, o.End), regionPop),
		Admissions:       admissions(calendar),
		RegionPopulation: regionPop,
		NationPopulation: nationPopulation(regionPop),
	}
}

// wave is a slow epidemic curve with a weekly reporting ripple. It stays
// strictly positive.
func wave(t int) float64 {
	return 1.5 + math.Sin(2*math.Pi*float64(t)/150) + 0.2*math.Cos(2*math.Pi*float64(t)/7)
}

func caseCount(t, region, age int) float64 {
	ageWeight := 1 + float64((age*7)%5)
	return math.Round(10 * float64(region+1) * ageWeight * wave(t+3*region))
}

func regionCases(calendar []time.Time, regions []string) []domain.CaseRecord {
	var out []domain.CaseRecord
	for t, d := range calendar {
		date := d.Format(domain.DateLayout)
		for r, name := range regions {
			var total float64
			for a, age := range domain.CaseAgeSubdivisions {
				n := caseCount(t, r, a)
				total += n
				out = append(out, domain.CaseRecord{AreaName: name, Date: date, Age: age, Cases: n})
			}
			for _, age := range extraCaseAges {
				out = append(out, domain.CaseRecord{AreaName: name, Date: date, Age: age, Cases: total})
			}
		}
	}
	return out
}

func nationCases(calendar []time.Time, regions []string) []domain.CaseRecord {
	var out []domain.CaseRecord
	for t, d := range calendar {
		date := d.Format(domain.DateLayout)
		for a, age := range domain.CaseAgeSubdivisions {
			var n float64
			for r := range regions {
				n += caseCount(t, r, a)
			}
			out = append(out, domain.CaseRecord{AreaName: domain.NationalAggregate, Date: date, Age: age, Cases: n})
		}
	}
	return out
}

func vaccinations(calendar []time.Time, pop []domain.RegionPopulation) []domain.VaccinationRecord {
	ages := append(append([]string{}, extraVaccinationAges...), domain.VaccinationAgeSubdivisions...)
	var out []domain.VaccinationRecord
	for t, d := range calendar {
		date := d.Format(domain.DateLayout)
		for a, age := range ages {
			// older groups first: coverage ramps faster with the bucket index
			speed := float64(a+1) / float64(len(ages))
			first := coverage(float64(t), speed)
			second := coverage(float64(t-21), speed) * 0.9
			n := bucketPopulation(pop, age)
			out = append(out, domain.VaccinationRecord{
				Date:          date,
				Age:           age,
				CumFirstDose:  math.Round(first * n),
				CumSecondDose: math.Round(second * n),
			})
		}
	}
	return out
}

// coverage is a logistic uptake curve reaching 95% of a group.
func coverage(t, speed float64) float64 {
	if t < 0 {
		return 0
	}
	return 0.95 / (1 + math.Exp(-speed*(t-60)/10))
}

// bucketPopulation sums every region's population over the years a
// vaccination bucket such as "25_29" or "90+" covers.
func bucketPopulation(pop []domain.RegionPopulation, bucket string) float64 {
	lo, err := domain.StartAge(bucket)
	if err != nil {
		return 0
	}
	hi := domain.TopCodedAge
	if len(bucket) == 5 {
		if v, err := strconv.Atoi(bucket[3:]); err == nil {
			hi = v + 1
		}
	}
	var total float64
	for _, r := range pop {
		for age := lo; age < hi && age < domain.TopCodedAge; age++ {
			total += r.ByAge[strconv.Itoa(age)]
		}
		if bucket == "90+" {
			total += r.ByAge["90+"]
		}
	}
	return total
}

var admissionRates = map[string]float64{
	"0_to_5":   2,
	"6_to_17":  1,
	"18_to_64": 40,
	"65_to_84": 60,
	"85+":      30,
}

func admissions(calendar []time.Time) []domain.AdmissionRecord {
	cumulative := make(map[string]float64, len(admissionRates))
	var out []domain.AdmissionRecord
	for t, d := range calendar {
		date := d.Format(domain.DateLayout)
		for _, age := range domain.AdmissionAgeSubdivisions {
			// admissions trail cases by about a week
			cumulative[age] += math.Round(admissionRates[age] * wave(t-7))
			out = append(out, domain.AdmissionRecord{Date: date, Age: age, Value: cumulative[age]})
		}
	}
	return out
}

func regionPopulation(regions []string) []domain.RegionPopulation {
	out := make([]domain.RegionPopulation, len(regions))
	for r, name := range regions {
		byAge := make(map[string]float64, domain.TopCodedAge+1)
		scale := 40000 + 10000*float64(r%4)
		for age := 0; age < domain.TopCodedAge; age++ {
			// a gently declining age pyramid
			byAge[strconv.Itoa(age)] = math.Round(scale * (1 - float64(age)/150))
		}
		byAge["90+"] = math.Round(scale * 2)
		out[r] = domain.RegionPopulation{Name: name, ByAge: byAge}
	}
	return out
}

func nationPopulation(regions []domain.RegionPopulation) []domain.AgePopulation {
	out := make([]domain.AgePopulation, 0, domain.TopCodedAge+1)
	for age := 0; age <= domain.TopCodedAge; age++ {
		key := strconv.Itoa(age)
		if age == domain.TopCodedAge {
			key = "90+"
		}
		var total float64
		for _, r := range regions {
			total += r.ByAge[key]
		}
		out = append(out, domain.AgePopulation{Age: key, Count: total})
	}
	return out
}
