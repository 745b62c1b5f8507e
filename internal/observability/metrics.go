package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "epi_metrics"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	SnapshotRefreshes  prometheus.Counter
	RefreshErrors      prometheus.Counter
	PipelineRunning    prometheus.Gauge
	SnapshotsPublished prometheus.Counter

	// Snapshot build metrics.
	RefreshDuration  prometheus.Histogram
	SnapshotBuiltAt  prometheus.Gauge
	SnapshotLastDate prometheus.Gauge
	SnapshotRegions  prometheus.Gauge

	// Explorer query metrics.
	QueryRequests *prometheus.CounterVec   // labels: query={cases,vaccinations,ratio,lag}, outcome={success,invalid,error}
	QueryDuration *prometheus.HistogramVec // labels: query

	// Feed download metrics.
	FeedRequests    *prometheus.CounterVec   // labels: feed, outcome={success,error}
	FeedCache       *prometheus.CounterVec   // labels: feed, result={miss,revalidated,stale}
	FeedAPIDuration *prometheus.HistogramVec // labels: feed
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		SnapshotRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refreshes_total",
			Help:      "Total successful snapshot rebuilds.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refresh_errors_total",
			Help:      "Total failed snapshot rebuilds.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Total snapshots handed to the downstream loader.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_refresh_duration_seconds",
			Help:      "Duration of a complete extract-and-build cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SnapshotBuiltAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_built_timestamp_seconds",
			Help:      "Unix time the current snapshot was built.",
		}),
		SnapshotLastDate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_last_date_timestamp_seconds",
			Help:      "Unix time of the last common date across the national series.",
		}),
		SnapshotRegions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_regions",
			Help:      "Number of selectable regions in the current snapshot.",
		}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      "Explorer queries by kind and outcome.",
		}, []string{"query", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Explorer query computation time in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"query"}),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Feed downloads by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_cache_total",
			Help:      "Feed cache lookups by feed and result.",
		}, []string{"feed", "result"}),
		FeedAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_api_duration_seconds",
			Help:      "Feed API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"feed"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SnapshotRefreshes,
		m.RefreshErrors,
		m.PipelineRunning,
		m.SnapshotsPublished,
		m.RefreshDuration,
		m.SnapshotBuiltAt,
		m.SnapshotLastDate,
		m.SnapshotRegions,
		m.QueryRequests,
		m.QueryDuration,
		m.FeedRequests,
		m.FeedCache,
		m.FeedAPIDuration,
	}
}
