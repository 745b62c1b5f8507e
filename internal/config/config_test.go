package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://api.coronavirus.data.gov.uk/v2/data", cfg.FeedBaseURL)
	assert.Empty(t, cfg.FeedDir)
	assert.Equal(t, 30*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 16, cfg.FeedCacheSize)
	assert.Equal(t, 6*time.Hour, cfg.RefreshInterval)
	assert.Equal(t, "2019_pop_by_region.csv", cfg.PopulationRegionFile)
	assert.Equal(t, "2019_England_pop.csv", cfg.PopulationNationFile)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "epi-metrics-snapshots", cfg.KafkaSinkTopic)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("FEED_BASE_URL", "http://localhost:8000/data")
	t.Setenv("FEED_DIR", "/data/feeds")
	t.Setenv("FEED_TIMEOUT", "5s")
	t.Setenv("FEED_CACHE_SIZE", "4")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("POPULATION_REGION_FILE", "/data/regions.csv")
	t.Setenv("POPULATION_NATION_FILE", "/data/england.csv")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:8000/data", cfg.FeedBaseURL)
	assert.Equal(t, "/data/feeds", cfg.FeedDir)
	assert.Equal(t, 5*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 4, cfg.FeedCacheSize)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "/data/regions.csv", cfg.PopulationRegionFile)
	assert.Equal(t, "/data/england.csv", cfg.PopulationNationFile)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"FEED_TIMEOUT", "REFRESH_INTERVAL"} {
		for _, v := range []string{"bad", "-1s", "0s"} {
			t.Run(key+"="+v, func(t *testing.T) {
				t.Setenv(key, v)
				_, err := Load()
				require.Error(t, err)
				assert.Contains(t, err.Error(), key)
			})
		}
	}
}

func TestLoad_InvalidFeedCacheSize(t *testing.T) {
	t.Setenv("FEED_CACHE_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEED_CACHE_SIZE")
}

func TestLoad_InvalidFeedBaseURL(t *testing.T) {
	t.Setenv("FEED_BASE_URL", "not a url")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEED_BASE_URL")
}

func TestLoad_FeedDirSkipsURLCheck(t *testing.T) {
	t.Setenv("FEED_BASE_URL", "")
	t.Setenv("FEED_DIR", "testdata")
	_, err := Load()
	require.NoError(t, err)
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}
