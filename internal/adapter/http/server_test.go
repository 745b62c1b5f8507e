package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/epi-metrics-service/internal/adapter/http"
	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/mockfeed"
	"github.com/couchcryptid/epi-metrics-service/internal/observability"
	"github.com/couchcryptid/epi-metrics-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type staticSnapshots struct {
	snap *pipeline.Snapshot
}

func (s staticSnapshots) Snapshot() (*pipeline.Snapshot, error) {
	if s.snap == nil {
		return nil, pipeline.ErrNotReady
	}
	return s.snap, nil
}

var (
	snapOnce sync.Once
	snap     *pipeline.Snapshot
	snapErr  error
)

// testSnapshot is built once; snapshots are immutable so tests can share it.
func testSnapshot(t *testing.T) *pipeline.Snapshot {
	t.Helper()
	snapOnce.Do(func() {
		opts := mockfeed.DefaultOptions()
		opts.End = time.Date(2021, time.January, 31, 0, 0, 0, 0, time.UTC)
		snap, snapErr = pipeline.BuildSnapshot(mockfeed.Generate(opts), time.Date(2021, time.February, 1, 6, 0, 0, 0, time.UTC))
	})
	require.NoError(t, snapErr)
	return snap
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error, snap *pipeline.Snapshot) (*httpadapter.Server, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, staticSnapshots{snap: snap}, metrics, discardLogger()), metrics
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

type seriesBody struct {
	SnapshotID string        `json:"snapshot_id"`
	Series     domain.Series `json:"series"`
}

type errorBody struct {
	Error  string `json:"error"`
	Fields []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(nil, nil)
	rec := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(nil, nil)
	rec := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(fmt.Errorf("not ready yet"), nil)
	rec := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(nil, nil)
	rec := get(t, srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIReturns503WithoutSnapshot(t *testing.T) {
	srv, metrics := newTestServer(nil, nil)
	rec := get(t, srv, "/api/v1/cases")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, pipeline.ErrNotReady.Error(), body.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueryRequests.WithLabelValues("cases", "error")))
}

func TestRegions(t *testing.T) {
	s := testSnapshot(t)
	srv, _ := newTestServer(nil, s)
	rec := get(t, srv, "/api/v1/regions")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var body struct {
		SnapshotID string   `json:"snapshot_id"`
		Regions    []string `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, s.ID, body.SnapshotID)
	assert.Equal(t, s.Regions, body.Regions)
	assert.Equal(t, domain.NationalAggregate, body.Regions[len(body.Regions)-1])
}

func TestDates(t *testing.T) {
	srv, _ := newTestServer(nil, testSnapshot(t))
	rec := get(t, srv, "/api/v1/dates")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Dates        []string `json:"dates"`
		DefaultStart string   `json:"default_start"`
		LastDate     string   `json:"last_date"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{
		"2020-08-01", "2020-09-01", "2020-10-01", "2020-11-01",
		"2020-12-01", "2021-01-01", "2021-01-31",
	}, body.Dates)
	assert.Equal(t, "2020-11-01", body.DefaultStart)
	assert.Equal(t, "2021-01-31", body.LastDate)
}

func TestCases_Defaults(t *testing.T) {
	s := testSnapshot(t)
	srv, metrics := newTestServer(nil, s)
	rec := get(t, srv, "/api/v1/cases")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Region        string        `json:"region"`
		PerPopulation domain.Series `json:"per_population"`
		Growth        domain.Series `json:"growth"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.NationalAggregate, body.Region)
	assert.Equal(t, []string{"0-19 yrs", "20-39 yrs", "40-59 yrs", "60+ yrs"}, body.PerPopulation.Columns)
	first, err := body.PerPopulation.FirstDate()
	require.NoError(t, err)
	assert.Equal(t, "2020-11-01", first.Format(domain.DateLayout))
	assert.Equal(t, body.PerPopulation.Dates, body.Growth.Dates)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueryRequests.WithLabelValues("cases", "success")))
}

func TestCases_Parameters(t *testing.T) {
	srv, _ := newTestServer(nil, testSnapshot(t))
	q := url.Values{
		"region":   {"London"},
		"start":    {"2020-12-01"},
		"dividers": {"50"},
		"rolling":  {"14"},
	}
	rec := get(t, srv, "/api/v1/cases?"+q.Encode())

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Region        string        `json:"region"`
		PerPopulation domain.Series `json:"per_population"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "London", body.Region)
	assert.Equal(t, []string{"0-49 yrs", "50+ yrs"}, body.PerPopulation.Columns)
}

func TestCases_NoDividers(t *testing.T) {
	srv, _ := newTestServer(nil, testSnapshot(t))
	rec := get(t, srv, "/api/v1/cases?dividers=none")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		PerPopulation domain.Series `json:"per_population"`
		Growth        domain.Series `json:"growth"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"0+ yrs"}, body.PerPopulation.Columns)
	assert.Equal(t, []string{"0+ yrs"}, body.Growth.Columns)
}

func TestCases_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		field  string
	}{
		{"bad integer", "rolling=seven", http.StatusBadRequest, "rolling"},
		{"bad date", "start=01/11/2020", http.StatusBadRequest, "start"},
		{"rolling too small", "rolling=0", http.StatusBadRequest, "Rolling"},
		{"divider out of range", "dividers=20,130", http.StatusBadRequest, "Dividers[1]"},
		{"none mixed with dividers", "dividers=none,20", http.StatusBadRequest, "dividers"},
		{"unknown region", "region=Atlantis", http.StatusNotFound, ""},
	}
	srv, _ := newTestServer(nil, testSnapshot(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/api/v1/cases?"+tt.query)
			assert.Equal(t, tt.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			if tt.field != "" {
				require.Len(t, body.Fields, 1)
				assert.Equal(t, tt.field, body.Fields[0].Field)
			}
		})
	}
}

func TestVaccinations(t *testing.T) {
	srv, _ := newTestServer(nil, testSnapshot(t))
	q := url.Values{"band": {domain.Band85Plus, domain.Band65To84}, "start": {"2020-12-01"}}
	rec := get(t, srv, "/api/v1/vaccinations?"+q.Encode())

	require.Equal(t, http.StatusOK, rec.Code)
	var body seriesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{
		domain.DoseColumn(domain.Band85Plus, 1), domain.DoseColumn(domain.Band85Plus, 2),
		domain.DoseColumn(domain.Band65To84, 1), domain.DoseColumn(domain.Band65To84, 2),
	}, body.Series.Columns)
	first, err := body.Series.FirstDate()
	require.NoError(t, err)
	assert.Equal(t, "2020-12-01", first.Format(domain.DateLayout))
}

func TestVaccinations_UnknownBand(t *testing.T) {
	srv, metrics := newTestServer(nil, testSnapshot(t))
	rec := get(t, srv, "/api/v1/vaccinations?band=toddlers")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueryRequests.WithLabelValues("vaccinations", "invalid")))
}

func TestRatio_Defaults(t *testing.T) {
	srv, _ := newTestServer(nil, testSnapshot(t))
	rec := get(t, srv, "/api/v1/ratio")

	require.Equal(t, http.StatusOK, rec.Code)
	var body seriesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{domain.Band65To84}, body.Series.Columns)
	first, err := body.Series.FirstDate()
	require.NoError(t, err)
	assert.Equal(t, "2020-11-01", first.Format(domain.DateLayout))
}

func TestLag(t *testing.T) {
	srv, _ := newTestServer(nil, testSnapshot(t))
	q := url.Values{"band": {domain.Band85Plus}, "start": {"2020-12-01"}, "end": {"2020-12-31"}, "lag": {"7"}}
	rec := get(t, srv, "/api/v1/lag?"+q.Encode())

	require.Equal(t, http.StatusOK, rec.Code)
	var body seriesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{
		pipeline.LagCases, pipeline.LagAdmissions, pipeline.LagDose1, pipeline.LagDose2,
		pipeline.LagRatio, pipeline.LagScaledCases, pipeline.LagDays,
	}, body.Series.Columns)
	assert.Equal(t, 31-7, body.Series.Len())
}

func TestLag_EndBeforeStart(t *testing.T) {
	srv, _ := newTestServer(nil, testSnapshot(t))
	rec := get(t, srv, "/api/v1/lag?start=2020-12-10&end=2020-12-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
