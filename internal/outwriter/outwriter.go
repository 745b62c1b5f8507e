// Package outwriter renders query results for the command line as aligned
// text tables, CSV, JSON, or long-format Parquet.
package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/parquet-go/parquet-go"
)

// Output formats.
const (
	TextOut    = "text"
	CSVOut     = "csv"
	JSONOut    = "json"
	ParquetOut = "parquet"
)

// Formats lists every supported output format.
var Formats = []string{TextOut, CSVOut, JSONOut, ParquetOut}

// Named is one result series with the name it is reported under.
type Named struct {
	Name   string
	Series domain.Series
}

// Options control number formatting.
type Options struct {
	Format    string
	Precision int
}

// ValidFormat reports whether format is supported.
func ValidFormat(format string) bool {
	return slices.Contains(Formats, strings.ToLower(format))
}

// Write renders every series to w in the configured format.
func Write(w io.Writer, results []Named, o Options) error {
	fmtFloat := func(v float64) string {
		return formatFloat(v, o.Precision)
	}

	switch strings.ToLower(o.Format) {
	case JSONOut:
		if err := writeJSON(w, results); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case CSVOut:
		if err := writeCSV(w, results, fmtFloat); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case ParquetOut:
		if err := writeParquet(w, results); err != nil {
			return fmt.Errorf("error writing parquet output: %w", err)
		}
	case TextOut, "":
		if err := writeText(w, results, fmtFloat); err != nil {
			return fmt.Errorf("error writing table output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q (want one of %s)", o.Format, strings.Join(Formats, ", "))
	}
	return nil
}

func formatFloat(v float64, precision int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return fmt.Sprintf("%.*f", precision, v)
}

func writeJSON(w io.Writer, results []Named) error {
	out := make(map[string]domain.Series, len(results))
	for _, r := range results {
		out[r.Name] = r.Series
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeCSV writes one wide block per series, each with its own header row.
func writeCSV(w io.Writer, results []Named, fmtFloat func(float64) string) error {
	cw := csv.NewWriter(w)
	for _, r := range results {
		header := append([]string{"series", "date"}, r.Series.Columns...)
		if err := cw.Write(header); err != nil {
			return err
		}
		for i, d := range r.Series.Dates {
			row := make([]string, 0, len(header))
			row = append(row, r.Name, d.Format(domain.DateLayout))
			for c := range r.Series.Columns {
				row = append(row, fmtFloat(r.Series.Values[c][i]))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, results []Named, fmtFloat func(float64) string) error {
	for n, r := range results {
		if n > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d rows)\n", r.Name, r.Series.Len())

		table := tablewriter.NewWriter(w)
		table.Header(append([]string{"Date"}, r.Series.Columns...))
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})

		data := make([][]string, 0, r.Series.Len())
		for i, d := range r.Series.Dates {
			row := make([]string, 0, len(r.Series.Columns)+1)
			row = append(row, d.Format(domain.DateLayout))
			for c := range r.Series.Columns {
				v := fmtFloat(r.Series.Values[c][i])
				if v == "" {
					v = "-"
				}
				row = append(row, v)
			}
			data = append(data, row)
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}

// Point is one cell of a series in long format.
type Point struct {
	// Series is the result name, e.g. "per_population"
	Series string `parquet:"series,snappy"`

	// Date is midnight UTC of the observation day
	Date time.Time `parquet:"date,snappy"`

	// Column is the band or metric column name
	Column string `parquet:"column,snappy"`

	// Value is null for missing values
	Value *float64 `parquet:"value,optional,snappy"`
}

// Points flattens results into long format, series by series and row by row.
func Points(results []Named) []Point {
	var out []Point
	for _, r := range results {
		for i, d := range r.Series.Dates {
			for c, col := range r.Series.Columns {
				p := Point{Series: r.Name, Date: d, Column: col}
				if v := r.Series.Values[c][i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
					p.Value = &v
				}
				out = append(out, p)
			}
		}
	}
	return out
}

func writeParquet(w io.Writer, results []Named) error {
	writer := parquet.NewGenericWriter[Point](w)
	if _, err := writer.Write(Points(results)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet: %w", err)
	}
	return writer.Close()
}
