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

	assert.Equal(t, "sigwatch.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 4, cfg.GlobalConcurrency)
	assert.Equal(t, 1, cfg.PerHostConcurrency)
	assert.Equal(t, 30, cfg.ItemsRetentionDays)
	assert.Equal(t, 90, cfg.IncidentsRetentionDays)
	assert.Equal(t, "feedpacks", cfg.FeedPackDir)
	assert.Empty(t, cfg.FIRMSKey)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DB_PATH", "/data/custom.db")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("GLOBAL_CONCURRENCY", "8")
	t.Setenv("PER_HOST_CONCURRENCY", "2")
	t.Setenv("ITEMS_RETENTION_DAYS", "14")
	t.Setenv("INCIDENTS_RETENTION_DAYS", "60")
	t.Setenv("FIRMS_KEY", "firms-test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/custom.db", cfg.DBPath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8, cfg.GlobalConcurrency)
	assert.Equal(t, 2, cfg.PerHostConcurrency)
	assert.Equal(t, 14, cfg.ItemsRetentionDays)
	assert.Equal(t, 60, cfg.IncidentsRetentionDays)
	assert.Equal(t, "firms-test-key", cfg.FIRMSKey)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidGlobalConcurrencyIgnoredFallsBackToDefault(t *testing.T) {
	// Non-numeric values fall back to the default rather than erroring, like
	// the teacher's envOrDefault helpers — only explicit non-positive numeric
	// overrides are rejected.
	t.Setenv("GLOBAL_CONCURRENCY", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.GlobalConcurrency)
}

func TestLoad_ZeroConcurrencyRejected(t *testing.T) {
	t.Setenv("GLOBAL_CONCURRENCY", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GLOBAL_CONCURRENCY")
}
