package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

type seriesJSON struct {
	Columns []string  `json:"columns"`
	Rows    []rowJSON `json:"rows"`
}

type rowJSON struct {
	Date   string     `json:"date"`
	Values []*float64 `json:"values"`
}

// MarshalJSON encodes the series row by row. NaN and infinite cells are
// written as null since JSON has no representation for them.
func (s Series) MarshalJSON() ([]byte, error) {
	out := seriesJSON{
		Columns: s.Columns,
		Rows:    make([]rowJSON, len(s.Dates)),
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for i, d := range s.Dates {
		vals := make([]*float64, len(s.Columns))
		for c := range s.Columns {
			v := s.Values[c][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			vals[c] = &v
		}
		out.Rows[i] = rowJSON{Date: d.Format(DateLayout), Values: vals}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the MarshalJSON form; null cells become NaN.
func (s *Series) UnmarshalJSON(data []byte) error {
	var in seriesJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := Series{
		Columns: in.Columns,
		Values:  make([][]float64, len(in.Columns)),
	}
	for c := range out.Values {
		out.Values[c] = make([]float64, len(in.Rows))
	}
	for i, row := range in.Rows {
		d, err := ParseDate(row.Date)
		if err != nil {
			return err
		}
		if len(row.Values) != len(in.Columns) {
			return fmt.Errorf("%w: row %s has %d values for %d columns", ErrSchema, row.Date, len(row.Values), len(in.Columns))
		}
		out.Dates = append(out.Dates, d)
		for c, v := range row.Values {
			if v == nil {
				out.Values[c][i] = math.NaN()
				continue
			}
			out.Values[c][i] = *v
		}
	}
	*s = out
	return nil
}
