package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Feed loading. FeedDir, when set, replaces the HTTP API with local CSV files.
	FeedBaseURL     string
	FeedDir         string
	FeedTimeout     time.Duration
	FeedCacheSize   int
	RefreshInterval time.Duration

	PopulationRegionFile string
	PopulationNationFile string

	// Snapshot publishing.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseFeedCacheSize()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedBaseURL:     sharedcfg.EnvOrDefault("FEED_BASE_URL", "https://api.coronavirus.data.gov.uk/v2/data"),
		FeedDir:         os.Getenv("FEED_DIR"),
		FeedTimeout:     feedTimeout,
		FeedCacheSize:   cacheSize,
		RefreshInterval: refreshInterval,

		PopulationRegionFile: sharedcfg.EnvOrDefault("POPULATION_REGION_FILE", "2019_pop_by_region.csv"),
		PopulationNationFile: sharedcfg.EnvOrDefault("POPULATION_NATION_FILE", "2019_England_pop.csv"),

		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "epi-metrics-snapshots"),
		KafkaEnabled:   kafkaEnabled,
	}

	if cfg.FeedDir == "" {
		if u, err := url.Parse(cfg.FeedBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid FEED_BASE_URL %q", cfg.FeedBaseURL)
		}
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFeedCacheSize() (int, error) {
	s := os.Getenv("FEED_CACHE_SIZE")
	if s == "" {
		return 16, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid FEED_CACHE_SIZE")
	}
	return n, nil
}
