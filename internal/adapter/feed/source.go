package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Fetcher returns the raw CSV body of a feed.
type Fetcher interface {
	Fetch(ctx context.Context, f Feed) ([]byte, error)
}

// Source loads every feed and both population files concurrently. It
// implements pipeline.FeedExtractor.
type Source struct {
	fetcher       Fetcher
	regionPopFile string
	nationPopFile string
	clock         clockwork.Clock
	logger        *slog.Logger
}

// NewSource creates a Source reading feeds through fetcher and population
// tables from the two local files.
func NewSource(fetcher Fetcher, regionPopFile, nationPopFile string, clock clockwork.Clock, logger *slog.Logger) *Source {
	return &Source{
		fetcher:       fetcher,
		regionPopFile: regionPopFile,
		nationPopFile: nationPopFile,
		clock:         clock,
		logger:        logger,
	}
}

// Extract materialises every raw table. The first failure cancels the
// remaining loads.
func (s *Source) Extract(ctx context.Context) (domain.Feeds, error) {
	start := s.clock.Now()
	var out domain.Feeds

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.RegionCases, err = fetchParse(ctx, s.fetcher, RegionCases, ParseCases)
		return err
	})
	g.Go(func() (err error) {
		out.NationCases, err = fetchParse(ctx, s.fetcher, NationCases, ParseCases)
		return err
	})
	g.Go(func() (err error) {
		out.Vaccinations, err = fetchParse(ctx, s.fetcher, Vaccinations, ParseVaccinations)
		return err
	})
	g.Go(func() (err error) {
		out.Admissions, err = fetchParse(ctx, s.fetcher, Admissions, ParseAdmissions)
		return err
	})
	g.Go(func() (err error) {
		out.RegionPopulation, err = readFile(s.regionPopFile, ParseRegionPopulation)
		return err
	})
	g.Go(func() (err error) {
		out.NationPopulation, err = readFile(s.nationPopFile, ParseNationPopulation)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Feeds{}, err
	}

	s.logger.Info("feeds loaded",
		"region_cases", len(out.RegionCases),
		"nation_cases", len(out.NationCases),
		"vaccinations", len(out.Vaccinations),
		"admissions", len(out.Admissions),
		"regions", len(out.RegionPopulation),
		"duration", s.clock.Since(start),
	)
	return out, nil
}

func fetchParse[T any](ctx context.Context, fetcher Fetcher, f Feed, parse func(io.Reader) ([]T, error)) ([]T, error) {
	body, err := fetcher.Fetch(ctx, f)
	if err != nil {
		return nil, err
	}
	recs, err := parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Name, err)
	}
	return recs, nil
}

func readFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read population file: %w", err)
	}
	recs, err := parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return recs, nil
}
