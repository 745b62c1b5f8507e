package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrNotReady is returned while no snapshot has been built yet.
var ErrNotReady = errors.New("no snapshot has been built yet")

// FeedExtractor materialises every raw feed in memory.
type FeedExtractor interface {
	Extract(ctx context.Context) (domain.Feeds, error)
}

// SnapshotLoader hands a freshly built snapshot to a downstream sink.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, snap *Snapshot) error
}

// Pipeline rebuilds the snapshot on a schedule and serves the latest one.
type Pipeline struct {
	extractor FeedExtractor
	loader    SnapshotLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	interval  time.Duration
	current   atomic.Pointer[Snapshot]
}

// New creates a Pipeline. loader may be nil when snapshots are not published.
func New(e FeedExtractor, l SnapshotLoader, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, interval time.Duration) *Pipeline {
	return &Pipeline{
		extractor: e,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		interval:  interval,
	}
}

// Snapshot returns the most recently built snapshot.
func (p *Pipeline) Snapshot() (*Snapshot, error) {
	snap := p.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// CheckReadiness returns nil once a snapshot is available.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.current.Load() == nil {
		return ErrNotReady
	}
	return nil
}

// Refresh extracts every feed, builds a new snapshot and swaps it in. The
// previous snapshot keeps serving if anything fails. A publish failure is
// logged but does not fail the refresh.
func (p *Pipeline) Refresh(ctx context.Context) error {
	start := p.clock.Now()

	feeds, err := p.extractor.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract feeds: %w", err)
	}
	snap, err := BuildSnapshot(feeds, p.clock.Now())
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}
	p.current.Store(snap)

	p.metrics.SnapshotRefreshes.Inc()
	p.metrics.RefreshDuration.Observe(p.clock.Since(start).Seconds())
	p.metrics.SnapshotBuiltAt.Set(float64(snap.BuiltAt.Unix()))
	p.metrics.SnapshotLastDate.Set(float64(snap.LastDate().Unix()))
	p.metrics.SnapshotRegions.Set(float64(len(snap.Regions)))
	p.logger.Info("snapshot built",
		"snapshot_id", snap.ID,
		"last_date", snap.LastDate().Format(domain.DateLayout),
		"rows", snap.Cases.Len(),
		"regions", len(snap.Regions),
	)

	if p.loader != nil {
		if err := p.loader.LoadSnapshot(ctx, snap); err != nil {
			p.logger.Warn("publish snapshot failed", "error", err, "snapshot_id", snap.ID)
		} else {
			p.metrics.SnapshotsPublished.Inc()
		}
	}
	return nil
}

// Run refreshes immediately and then every interval until the context is
// cancelled. Failed refreshes are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "refresh_interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.interval
		if err := p.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.metrics.RefreshErrors.Inc()
			p.logger.Error("refresh failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !p.sleepWithContext(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (p *Pipeline) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
