package pipeline_test

import (
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/mockfeed"
	"github.com/couchcryptid/epi-metrics-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var builtAt = time.Date(2021, time.February, 1, 6, 0, 0, 0, time.UTC)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

// testFeeds covers August 2020 to January 2021, which is enough for every
// query while keeping the fixtures small.
func testFeeds() domain.Feeds {
	opts := mockfeed.DefaultOptions()
	opts.End = time.Date(2021, time.January, 31, 0, 0, 0, 0, time.UTC)
	return mockfeed.Generate(opts)
}

func buildTestSnapshot(t *testing.T) *pipeline.Snapshot {
	t.Helper()
	snap, err := pipeline.BuildSnapshot(testFeeds(), builtAt)
	require.NoError(t, err)
	return snap
}

func TestBuildSnapshot(t *testing.T) {
	snap := buildTestSnapshot(t)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, builtAt, snap.BuiltAt)

	first := date(t, "2020-08-01")
	last := date(t, "2021-01-31")
	for name, s := range map[string]domain.Series{
		"cases":        snap.Cases,
		"vaccinations": snap.Vaccinations,
		"admissions":   snap.Admissions,
	} {
		assert.Equal(t, domain.DailyCalendar(first, last), s.Dates, name)
	}
	assert.Equal(t, domain.AdmissionBands.Labels(), snap.Cases.Columns)
	assert.Equal(t, domain.AdmissionBands.Labels(), snap.Admissions.Columns)
	assert.Len(t, snap.Vaccinations.Columns, 8)
	assert.Equal(t, last, snap.LastDate())

	// vaccinations are backfilled before the rollout
	assert.True(t, math.IsNaN(snap.Vaccinations.Value(domain.DoseColumn(domain.Band85Plus, 1), date(t, "2020-12-07"))))
	assert.False(t, math.IsNaN(snap.Vaccinations.Value(domain.DoseColumn(domain.Band85Plus, 1), date(t, "2020-12-08"))))
	// admissions lose their first row to differencing
	assert.True(t, math.IsNaN(snap.Admissions.Value(domain.Band65To84, first)))
	assert.Greater(t, snap.Admissions.Value(domain.Band65To84, date(t, "2020-08-02")), 0.0)

	assert.Equal(t, append(append([]string{}, mockfeed.EnglandRegions...), domain.NationalAggregate), snap.Regions)
	assert.Equal(t, []time.Time{
		date(t, "2020-08-01"), date(t, "2020-09-01"), date(t, "2020-10-01"),
		date(t, "2020-11-01"), date(t, "2020-12-01"), date(t, "2021-01-01"),
		last,
	}, snap.Dates)
}

func TestBuildSnapshot_EqualizesEndDates(t *testing.T) {
	feeds := testFeeds()
	cutoff := "2021-01-20"
	var trimmed []domain.AdmissionRecord
	for _, r := range feeds.Admissions {
		if r.Date <= cutoff {
			trimmed = append(trimmed, r)
		}
	}
	feeds.Admissions = trimmed

	snap, err := pipeline.BuildSnapshot(feeds, builtAt)
	require.NoError(t, err)

	for _, s := range []domain.Series{snap.Cases, snap.Vaccinations, snap.Admissions} {
		last, err := s.LastDate()
		require.NoError(t, err)
		assert.Equal(t, date(t, cutoff), last)
	}
	assert.Equal(t, date(t, cutoff), snap.Dates[len(snap.Dates)-1])
}

func TestBuildSnapshot_Errors(t *testing.T) {
	t.Run("unparsable nation population age", func(t *testing.T) {
		feeds := testFeeds()
		feeds.NationPopulation = []domain.AgePopulation{{Age: "forty", Count: 1}}
		_, err := pipeline.BuildSnapshot(feeds, builtAt)
		require.ErrorIs(t, err, domain.ErrSchema)
		assert.Contains(t, err.Error(), "nation population")
	})

	t.Run("truncated nation population", func(t *testing.T) {
		feeds := testFeeds()
		feeds.NationPopulation = feeds.NationPopulation[:65]
		_, err := pipeline.BuildSnapshot(feeds, builtAt)
		require.ErrorIs(t, err, domain.ErrSchema)
		assert.Contains(t, err.Error(), "nation population")
	})

	t.Run("missing case bucket", func(t *testing.T) {
		feeds := testFeeds()
		var cases []domain.CaseRecord
		for _, r := range feeds.NationCases {
			if r.Age != "15_19" {
				cases = append(cases, r)
			}
		}
		feeds.NationCases = cases
		_, err := pipeline.BuildSnapshot(feeds, builtAt)
		require.ErrorIs(t, err, domain.ErrSchema)
		assert.Contains(t, err.Error(), "prepare cases")
	})

	t.Run("bad date", func(t *testing.T) {
		feeds := testFeeds()
		feeds.Admissions[0].Date = "yesterday"
		_, err := pipeline.BuildSnapshot(feeds, builtAt)
		assert.ErrorIs(t, err, domain.ErrSchema)
	})
}
