package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "monitoring", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "propwatch", cfg.DatabaseName)
	assert.Equal(t, 60, cfg.Engine.CheckIntervalSeconds)
	assert.Equal(t, 60, cfg.Engine.DedupWindowMinutes)
	assert.Equal(t, "monitoring.events", cfg.Engine.EventsExchange)
	assert.Equal(t, "etl.jobs", cfg.Scheduler.JobQueue)
	assert.Equal(t, 30, cfg.Retention.MetricsDays)
	assert.Equal(t, 90, cfg.Retention.AlertsDays)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ENGINE_CHECK_INTERVAL", "15")
	t.Setenv("ALERT_DEDUP_WINDOW", "120")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 15, cfg.Engine.CheckIntervalSeconds)
	assert.Equal(t, 120, cfg.Engine.DedupWindowMinutes)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "monitoring.yaml")
	content := []byte(`
engine:
  prometheus_url: http://prometheus:9090
etl:
  listings_feed_url: https://feed.example.com/listings.json
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://prometheus:9090", cfg.Engine.PrometheusURL)
	assert.Equal(t, "https://feed.example.com/listings.json", cfg.ETL.ListingsFeedURL)
}

func TestLoadConfigMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig("/nonexistent/monitoring.yaml")
	require.NoError(t, err)
	assert.Equal(t, "monitoring", cfg.ServiceName)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig("")
	assert.Error(t, err)
}
