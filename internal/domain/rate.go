package domain

// PerTenThousand is the rate unit used across every published series.
const PerTenThousand = 10000

// PerPopulation divides every column by the population of the band with the
// same label and rescales to "per `per` population". Columns are matched by
// label, not position. A zero population yields an infinite or NaN rate.
func PerPopulation(s Series, pop Population, per float64) (Series, error) {
	return scaleByPopulation(s, pop, func(v, n float64) float64 { return v / n * per })
}

// CountsFromRate inverts PerPopulation.
func CountsFromRate(s Series, pop Population, per float64) (Series, error) {
	return scaleByPopulation(s, pop, func(v, n float64) float64 { return v * n / per })
}

func scaleByPopulation(s Series, pop Population, f func(v, n float64) float64) (Series, error) {
	out := s.Clone()
	for c, name := range out.Columns {
		n, err := pop.Count(name)
		if err != nil {
			return Series{}, err
		}
		col := out.Values[c]
		for i, v := range col {
			col[i] = f(v, n)
		}
	}
	return out, nil
}
