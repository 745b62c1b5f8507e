package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/epi-metrics-service/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/epi-metrics-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/epi-metrics-service/internal/adapter/kafka"
	"github.com/couchcryptid/epi-metrics-service/internal/config"
	"github.com/couchcryptid/epi-metrics-service/internal/observability"
	"github.com/couchcryptid/epi-metrics-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Feeds come from a local directory when FEED_DIR is set, otherwise from the API.
	clock := clockwork.NewRealClock()
	var fetcher feed.Fetcher
	if cfg.FeedDir != "" {
		fetcher = feed.NewDirFetcher(cfg.FeedDir)
		logger.Info("reading feeds from directory", "dir", cfg.FeedDir)
	} else {
		fetcher = feed.NewClient(cfg.FeedBaseURL, cfg.FeedTimeout, cfg.FeedCacheSize, metrics, logger)
		logger.Info("downloading feeds", "base_url", cfg.FeedBaseURL, "cache_size", cfg.FeedCacheSize, "timeout", cfg.FeedTimeout)
	}
	source := feed.NewSource(fetcher,
		feed.PopulationPath(cfg.FeedDir, cfg.PopulationRegionFile),
		feed.PopulationPath(cfg.FeedDir, cfg.PopulationNationFile),
		clock, logger)

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var (
		loader pipeline.SnapshotLoader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loader = writer
		logger.Info("snapshot publishing enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("snapshot publishing disabled")
	}

	p := pipeline.New(source, loader, logger, metrics, clock, cfg.RefreshInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
