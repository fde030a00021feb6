package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vigilo.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFilesAppliesDefaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "http", config.Probe.Mode)
	assert.Equal(t, 5, config.Breaker.FailureThreshold)
	assert.Equal(t, 300, config.Debug.DefaultDurationSeconds)
	assert.True(t, config.Scheduler.Enabled)
	assert.Equal(t, "UTC", config.Scheduler.Timezone)
	assert.True(t, config.SLA.CacheEnabled)
	assert.Equal(t, "chromium", config.Browser.Kind)
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
environment = "production"

[server]
port = 9090
host = "0.0.0.0"

[probe]
mode = "browser"
timeout_seconds = 10

[breaker]
failure_threshold = 3
cooldown_seconds = 60

[scheduler]
timezone = "Australia/Sydney"

[sla]
cache_enabled = false
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "browser", config.Probe.Mode)
	assert.Equal(t, 10, config.Probe.TimeoutSeconds)
	assert.Equal(t, 3, config.Breaker.FailureThreshold)
	assert.Equal(t, "Australia/Sydney", config.Scheduler.Timezone)
	assert.False(t, config.SLA.CacheEnabled)
	assert.True(t, config.IsProduction())

	// Untouched sections keep their defaults
	assert.Equal(t, "./data", config.Storage.Badger.Path)
	assert.Equal(t, 300, config.SLA.CacheTTLSeconds)
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	first := writeConfigFile(t, "[server]\nport = 9090\n")
	second := writeConfigFile(t, "[server]\nport = 7070\n")

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 7070, config.Server.Port)
}

func TestLoadFromFilesRejectsMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "[server\nport = not a number")

	_, err := LoadFromFiles(path)
	require.Error(t, err)
}

func TestEnvOverridesBeatConfigFile(t *testing.T) {
	path := writeConfigFile(t, "[server]\nport = 9090\n")

	t.Setenv("VIGILO_SERVER_PORT", "6060")
	t.Setenv("VIGILO_PROBE_MODE", "browser")
	t.Setenv("VIGILO_BREAKER_COOLDOWN_SECONDS", "120")
	t.Setenv("VIGILO_SCHEDULER_TIMEZONE", "Europe/Berlin")
	t.Setenv("VIGILO_SLA_CACHE_ENABLED", "false")
	t.Setenv("VIGILO_BROWSER_KIND", "chromium")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 6060, config.Server.Port)
	assert.Equal(t, "browser", config.Probe.Mode)
	assert.Equal(t, 2*time.Minute, config.Breaker.Cooldown())
	assert.Equal(t, "Europe/Berlin", config.Scheduler.Timezone)
	assert.False(t, config.SLA.CacheEnabled)
	assert.Equal(t, "chromium", config.Browser.Kind)
}

func TestApplyFlagOverridesHighestPriority(t *testing.T) {
	config := NewDefaultConfig()
	t.Setenv("VIGILO_SERVER_PORT", "6060")

	ApplyFlagOverrides(config, 5050, "127.0.0.1")
	assert.Equal(t, 5050, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 5050, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestDurationHelpers(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, time.Second, config.Debug.FlushInterval())
	assert.Equal(t, 5*time.Minute, config.Breaker.Cooldown())
	assert.Equal(t, 5*time.Minute, config.SLA.CacheTTL())

	config.Debug.FlushIntervalMs = 0
	assert.Equal(t, time.Second, config.Debug.FlushInterval(), "non-positive flush interval falls back to 1s")
}

func TestSchedulerLocation(t *testing.T) {
	scheduler := SchedulerConfig{Timezone: "UTC"}
	assert.Equal(t, time.UTC, scheduler.Location())

	scheduler.Timezone = ""
	assert.Equal(t, time.UTC, scheduler.Location())

	scheduler.Timezone = "Australia/Sydney"
	assert.Equal(t, "Australia/Sydney", scheduler.Location().String())

	scheduler.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, scheduler.Location(), "unknown zone falls back to UTC")
}
