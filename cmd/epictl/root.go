package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/adapter/feed"
	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/observability"
	"github.com/couchcryptid/epi-metrics-service/internal/outwriter"
	"github.com/couchcryptid/epi-metrics-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the resolved configuration shared by every subcommand.
type cli struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "epictl",
		Short: "Query age-banded case, vaccination and admission metrics from local feed files.",
		Long: `epictl builds the same snapshot the service serves from a directory of feed
CSV files and runs one explorer query against it.

Settings resolve from flags, then EPICTL_* environment variables, then an
optional .epictl.yaml in the working or home directory.`,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE:  c.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.String("feeds", ".", "Directory containing the feed CSV files")
	pf.String("region-population", feed.RegionPopulationFile, "Population-by-region file, relative to --feeds unless absolute")
	pf.String("nation-population", feed.NationPopulationFile, "National population file, relative to --feeds unless absolute")
	pf.String("output", outwriter.TextOut, "Output format: "+strings.Join(outwriter.Formats, " or "))
	pf.String("output-file", "", "Optional path to write output to")
	pf.Int("precision", 2, "Decimal precision for numeric columns")
	pf.String("log-level", "warn", "Log level written to stderr")
	pf.String("config", "", "Path to config file")

	root.AddCommand(c.casesCmd(), c.vaccinationsCmd(), c.ratioCmd(), c.lagCmd(), c.validateCmd())
	return root
}

// setup binds the executing command's flags, so subcommands may reuse names
// like --start with their own defaults.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if err := c.v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	c.v.SetEnvPrefix("EPICTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if configFile := c.v.GetString("config"); configFile != "" {
		c.v.SetConfigFile(configFile)
	} else {
		c.v.SetConfigName(".epictl")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(".")
		c.v.AddConfigPath("$HOME")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if format := c.v.GetString("output"); !outwriter.ValidFormat(format) {
		return fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(outwriter.Formats, ", "))
	}
	if c.v.GetInt("precision") < 0 {
		return fmt.Errorf("precision must be non-negative")
	}

	c.logger = observability.NewTextLogger(c.errOut, c.v.GetString("log-level"))
	return nil
}

func (c *cli) source() *feed.Source {
	dir := c.v.GetString("feeds")
	return feed.NewSource(feed.NewDirFetcher(dir),
		feed.PopulationPath(dir, c.v.GetString("region-population")),
		feed.PopulationPath(dir, c.v.GetString("nation-population")),
		clockwork.NewRealClock(), c.logger)
}

func (c *cli) loadSnapshot(ctx context.Context) (*pipeline.Snapshot, error) {
	feeds, err := c.source().Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	snap, err := pipeline.BuildSnapshot(feeds, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	c.logger.Info("snapshot built", "last_date", snap.LastDate().Format(domain.DateLayout), "regions", len(snap.Regions))
	return snap, nil
}

// render writes results to --output-file when set, otherwise to stdout.
func (c *cli) render(results []outwriter.Named) error {
	w := c.out
	if path := c.v.GetString("output-file"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		w = file
		defer fmt.Fprintf(c.errOut, "wrote %s output to %s\n", c.v.GetString("output"), path)
	}
	return outwriter.Write(w, results, outwriter.Options{
		Format:    c.v.GetString("output"),
		Precision: c.v.GetInt("precision"),
	})
}

// date reads an optional YYYY-MM-DD setting; empty keeps def.
func (c *cli) date(key string, def time.Time) (time.Time, error) {
	raw := strings.TrimSpace(c.v.GetString(key))
	if raw == "" {
		return def, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", key, err)
	}
	return d, nil
}
