package main

import (
	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/outwriter"
	"github.com/couchcryptid/epi-metrics-service/internal/pipeline"
	"github.com/spf13/cobra"
)

// flagDefaults are the dashboard defaults that do not depend on snapshot dates.
var flagDefaults = struct {
	cases pipeline.CaseQuery
	ratio pipeline.RatioQuery
	lag   pipeline.LagQuery
}{
	cases: pipeline.DefaultCaseQuery(&pipeline.Snapshot{}),
	ratio: pipeline.DefaultRatioQuery(&pipeline.Snapshot{}),
	lag:   pipeline.DefaultLagQuery(&pipeline.Snapshot{}),
}

const startUsage = "First date to report (YYYY-MM-DD); defaults to the fourth selectable date"

func (c *cli) casesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Rolling cases per 10k and their growth rate for custom age bands",
		Long: `Bin regional cases into bands split at --dividers, roll them over --rolling
days and report cases per 10k of the region's population together with the
growth rate over --growth-interval days, smoothed over --growth-smoothing days.

Examples:
  # National view with the default 20/40/60 split
  epictl cases

  # Under-30s against over-60s in London since December
  epictl cases --region London --dividers 30,60 --start 2020-12-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := c.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			q := pipeline.DefaultCaseQuery(snap)
			if q.Start, err = c.date("start", q.Start); err != nil {
				return err
			}
			q.Region = domain.ParseRegion(c.v.GetString("region"))
			q.Rolling = c.v.GetInt("rolling")
			q.GrowthInterval = c.v.GetInt("growth-interval")
			q.GrowthSmoothing = c.v.GetInt("growth-smoothing")
			q.Dividers = c.v.GetIntSlice("dividers")

			res, err := snap.CaseAnalysis(q)
			if err != nil {
				return err
			}
			return c.render([]outwriter.Named{
				{Name: "per_population", Series: res.PerPopulation},
				{Name: "growth", Series: res.Growth},
			})
		},
	}
	f := cmd.Flags()
	f.String("region", domain.NationalAggregate, "Region name, or England for every region")
	f.String("start", "", startUsage)
	f.Int("rolling", flagDefaults.cases.Rolling, "Trailing rolling window in days")
	f.Int("growth-interval", flagDefaults.cases.GrowthInterval, "Growth rate interval in days")
	f.Int("growth-smoothing", flagDefaults.cases.GrowthSmoothing, "Centred smoothing window for the growth rate")
	f.IntSlice("dividers", flagDefaults.cases.Dividers, "Ages at which a new band starts")
	return cmd
}

func (c *cli) vaccinationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaccinations",
		Short: "Cumulative first and second dose coverage per 10k by age band",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := c.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			q := pipeline.VaccinationQuery{Bands: c.v.GetStringSlice("bands")}
			if q.Start, err = c.date("start", pipeline.DefaultCaseQuery(snap).Start); err != nil {
				return err
			}

			vax, err := snap.VaccinationCoverage(q)
			if err != nil {
				return err
			}
			return c.render([]outwriter.Named{{Name: "vaccinations", Series: vax}})
		},
	}
	f := cmd.Flags()
	f.String("start", "", startUsage)
	f.StringSlice("bands", nil, "Age bands to report; defaults to all four")
	return cmd
}

func (c *cli) ratioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratio",
		Short: "Admissions per case, comparing today's cases with admissions --offset days later",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := c.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			q := pipeline.DefaultRatioQuery(snap)
			if q.Start, err = c.date("start", q.Start); err != nil {
				return err
			}
			q.Rolling = c.v.GetInt("rolling")
			q.Offset = c.v.GetInt("offset")
			if bands := c.v.GetStringSlice("bands"); len(bands) > 0 {
				q.Bands = bands
			}

			ratio, err := snap.AdmissionRatio(q)
			if err != nil {
				return err
			}
			return c.render([]outwriter.Named{{Name: "ratio", Series: ratio}})
		},
	}
	f := cmd.Flags()
	f.String("start", "", startUsage)
	f.Int("rolling", flagDefaults.ratio.Rolling, "Rolling window in days for both series")
	f.Int("offset", flagDefaults.ratio.Offset, "Days between cases and the admissions they are compared with")
	f.StringSlice("bands", flagDefaults.ratio.Bands, "Age bands to report")
	return cmd
}

func (c *cli) lagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lag",
		Short: "Lagged admissions against cases and vaccine coverage for one age band",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := c.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			q := pipeline.DefaultLagQuery(snap)
			if q.Start, err = c.date("start", q.Start); err != nil {
				return err
			}
			if q.End, err = c.date("end", q.End); err != nil {
				return err
			}
			q.Rolling = c.v.GetInt("rolling")
			q.Lag = c.v.GetInt("lag")
			q.Band = c.v.GetString("band")

			table, err := snap.LagAnalysis(q)
			if err != nil {
				return err
			}
			return c.render([]outwriter.Named{{Name: "lag", Series: table}})
		},
	}
	f := cmd.Flags()
	f.String("start", "", startUsage)
	f.String("end", "", "Last date to report (YYYY-MM-DD); defaults to the last common date")
	f.Int("rolling", flagDefaults.lag.Rolling, "Rolling window in days")
	f.Int("lag", flagDefaults.lag.Lag, "Days admissions trail cases")
	f.String("band", flagDefaults.lag.Band, "Age band")
	return cmd
}
