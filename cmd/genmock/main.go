// Command genmock writes deterministic synthetic feed files, including both
// population files, in the layout the service reads when FEED_DIR is set.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//	go run ./cmd/genmock -out data/mock -end 2021-06-30 -regions London,"North East"
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/couchcryptid/epi-metrics-service/internal/adapter/feed"
	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/mockfeed"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := mockfeed.DefaultOptions()

	out := flag.String("out", "", "directory to write the feed files to")
	start := flag.String("start", defaults.Start.Format(domain.DateLayout), "first reported date")
	end := flag.String("end", defaults.End.Format(domain.DateLayout), "last reported date")
	vaxStart := flag.String("vaccination-start", defaults.VaccinationStart.Format(domain.DateLayout), "first vaccination date")
	regions := flag.String("regions", strings.Join(defaults.Regions, ","), "comma-separated region names")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	opts := mockfeed.Options{Regions: splitList(*regions)}
	var err error
	if opts.Start, err = domain.ParseDate(*start); err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	if opts.End, err = domain.ParseDate(*end); err != nil {
		return fmt.Errorf("-end: %w", err)
	}
	if opts.VaccinationStart, err = domain.ParseDate(*vaxStart); err != nil {
		return fmt.Errorf("-vaccination-start: %w", err)
	}
	if opts.End.Before(opts.Start) {
		return fmt.Errorf("-end %s is before -start %s", *end, *start)
	}
	if len(opts.Regions) == 0 {
		return fmt.Errorf("-regions must name at least one region")
	}

	feeds := mockfeed.Generate(opts)
	if err := feed.WriteDir(*out, feeds); err != nil {
		return fmt.Errorf("writing feeds: %w", err)
	}

	log.Printf("region cases: %d rows", len(feeds.RegionCases))
	log.Printf("nation cases: %d rows", len(feeds.NationCases))
	log.Printf("vaccinations: %d rows", len(feeds.Vaccinations))
	log.Printf("admissions: %d rows", len(feeds.Admissions))
	log.Printf("wrote feeds for %d regions to %s", len(opts.Regions), *out)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
