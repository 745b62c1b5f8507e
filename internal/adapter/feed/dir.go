package feed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
)

// Default population file names, relative to the working directory or a
// feed directory.
const (
	RegionPopulationFile = "2019_pop_by_region.csv"
	NationPopulationFile = "2019_England_pop.csv"
)

// DirFetcher reads feeds from <dir>/<feed name>.csv.
type DirFetcher struct {
	dir string
}

// NewDirFetcher creates a fetcher over a local directory of feed files.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{dir: dir}
}

// Path returns the file a feed is read from.
func (d *DirFetcher) Path(f Feed) string {
	return filepath.Join(d.dir, f.Name+".csv")
}

// Fetch reads the whole feed file.
func (d *DirFetcher) Fetch(ctx context.Context, f Feed) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(d.Path(f))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return body, nil
}

// WriteDir writes every feed and both population files into dir in the
// layout DirFetcher and Source read back.
func WriteDir(dir string, feeds domain.Feeds) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}

	files := []struct {
		name  string
		write func(*bytes.Buffer) error
	}{
		{RegionCases.Name + ".csv", func(b *bytes.Buffer) error { return WriteCases(b, feeds.RegionCases) }},
		{NationCases.Name + ".csv", func(b *bytes.Buffer) error { return WriteCases(b, feeds.NationCases) }},
		{Vaccinations.Name + ".csv", func(b *bytes.Buffer) error { return WriteVaccinations(b, feeds.Vaccinations) }},
		{Admissions.Name + ".csv", func(b *bytes.Buffer) error { return WriteAdmissions(b, feeds.Admissions) }},
		{RegionPopulationFile, func(b *bytes.Buffer) error { return WriteRegionPopulation(b, feeds.RegionPopulation) }},
		{NationPopulationFile, func(b *bytes.Buffer) error { return WriteNationPopulation(b, feeds.NationPopulation) }},
	}

	for _, f := range files {
		var buf bytes.Buffer
		if err := f.write(&buf); err != nil {
			return fmt.Errorf("encode %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), buf.Bytes(), 0o644); err != nil { //nolint:gosec // feed files are public data
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

// PopulationPath resolves a relative population file against the feed
// directory when one is in use.
func PopulationPath(feedDir, file string) string {
	if feedDir == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(feedDir, file)
}
