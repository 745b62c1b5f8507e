// Package domain normalises public epidemiological feeds into wide,
// date-keyed series and derives rates, growth rates and lagged ratios from
// them. Every function here is pure: inputs are never modified and results
// are freshly allocated, so a loaded data set can be shared by any number of
// concurrent readers.
//
// # Data Sources
//
// Four daily feeds and two census files are consumed, all as CSV:
//
//	cases (regional and national)  areaName, date, age, cases
//	vaccinations                   date, age, cumPeopleVaccinatedFirstDoseByVaccinationDate,
//	                               cumPeopleVaccinatedSecondDoseByVaccinationDate
//	admissions                     date, age, value (cumulative)
//	population by region           Name, 0..89, 90+
//	population for England         age, <count>
//
// Rows dated on or before [BaselineCutoff] are dropped: the summer 2020
// baseline is too low-volume to produce meaningful rates.
//
// # Age Vocabulary
//
// Cases and vaccinations arrive in 5-year buckets ("00_04" .. "85_89", "90+")
// whose first two characters encode the starting age. Admissions arrive in
// five named bands ("0_to_5", "6_to_17", "18_to_64", "65_to_84", "85+"), so
// every national series is re-bucketed into the four [AdmissionBands]:
//
//	0-17 yrs   00_04 + 05_09 + 10_14 + 0.6 * 15_19
//	18-64 yrs  0.4 * 15_19 + 20_24 .. 60_64
//	65-84 yrs  65_69 .. 80_84
//	85+ yrs    85_89 + 90+
//
// Vaccination 0-17 is always zero because the feed carries no paediatric
// data. Regional cases use a caller-chosen [Partition] instead.
//
// # Rates
//
// Counts are divided by the population of the band with the same label and
// scaled to [PerTenThousand]. Cases and admissions become daily rates;
// vaccinations stay cumulative. Division by a zero population yields +Inf or
// NaN, and both are treated as "no data" downstream.
//
// # Missing Values
//
// NaN marks a missing cell: warm-up rows of a rolling window, the first row
// after differencing, rows shifted off the end, and dates backfilled before a
// series began. These are displayable states, never errors. Errors are
// reserved for schema, alignment and lookup failures (see errors.go).
package domain
