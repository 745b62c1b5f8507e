package main

import (
	"fmt"
	"math"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/pipeline"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// check is the outcome of one validation step.
type check struct {
	name   string
	err    error
	detail string
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every feed, build a snapshot and run each default query",
		Long: `Validate confirms a feed directory honours every column contract: it loads
all feeds, builds the snapshot and runs the default case query for every
region plus the vaccination, ratio and lag queries for every admission band.
It exits non-zero when any step fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := c.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			checks := runChecks(snap)
			if err := printChecks(c, checks); err != nil {
				return err
			}

			failed := 0
			for _, ch := range checks {
				if ch.err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(checks))
			}
			return nil
		},
	}
}

func runChecks(snap *pipeline.Snapshot) []check {
	checks := []check{{
		name: "snapshot",
		detail: fmt.Sprintf("%d days to %s, %d regions",
			snap.Cases.Len(), snap.LastDate().Format(domain.DateLayout), len(snap.Regions)),
	}}

	for _, region := range snap.Regions {
		q := pipeline.DefaultCaseQuery(snap)
		q.Region = domain.ParseRegion(region)
		res, err := snap.CaseAnalysis(q)
		checks = append(checks, seriesCheck("cases "+region, res.PerPopulation, err))
	}

	vax, err := snap.VaccinationCoverage(pipeline.VaccinationQuery{Start: pipeline.DefaultCaseQuery(snap).Start})
	checks = append(checks, seriesCheck("vaccinations", vax, err))

	for _, band := range domain.AdmissionBands.Labels() {
		rq := pipeline.DefaultRatioQuery(snap)
		rq.Bands = []string{band}
		ratio, err := snap.AdmissionRatio(rq)
		checks = append(checks, seriesCheck("ratio "+band, ratio, err))

		lq := pipeline.DefaultLagQuery(snap)
		lq.Band = band
		lag, err := snap.LagAnalysis(lq)
		checks = append(checks, seriesCheck("lag "+band, lag, err))
	}
	return checks
}

// seriesCheck fails a query that errored or produced no finite value at all.
func seriesCheck(name string, s domain.Series, err error) check {
	if err != nil {
		return check{name: name, err: err}
	}
	finite := 0
	for _, col := range s.Values {
		for _, v := range col {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite++
			}
		}
	}
	cells := s.Len() * len(s.Columns)
	ch := check{name: name, detail: fmt.Sprintf("%d rows, %d/%d values", s.Len(), finite, cells)}
	if finite == 0 {
		ch.err = fmt.Errorf("%w: no finite values", domain.ErrEmptySeries)
	}
	return ch
}

func printChecks(c *cli, checks []check) error {
	table := tablewriter.NewWriter(c.out)
	table.Header([]string{"Check", "Status", "Detail"})

	data := make([][]string, 0, len(checks))
	for _, ch := range checks {
		status, detail := "ok", ch.detail
		if ch.err != nil {
			status, detail = "FAIL", ch.err.Error()
		}
		data = append(data, []string{ch.name, status, detail})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
