package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Probe       ProbeConfig     `toml:"probe"`
	Breaker     BreakerConfig   `toml:"breaker"`
	Debug       DebugConfig     `toml:"debug"`
	SLA         SLAConfig       `toml:"sla"`
	Browser     BrowserConfig   `toml:"browser"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// SchedulerConfig controls the periodic check subsystem
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Timezone string `toml:"timezone"` // IANA name for cron scheduling, default UTC
}

// ProbeConfig controls availability probes
type ProbeConfig struct {
	Mode           string        `toml:"mode"`            // "http" or "browser"
	TimeoutSeconds int           `toml:"timeout_seconds"` // upper bound; effective deadline also respects the target interval
	Retries        int           `toml:"retries"`         // transient connect errors only, never HTTP status
	UserAgent      string        `toml:"user_agent"`
	RetryInterval  time.Duration `toml:"retry_interval"` // initial backoff between probe retries
}

// BreakerConfig controls the per-target circuit breaker
type BreakerConfig struct {
	FailureThreshold int `toml:"failure_threshold"` // consecutive failures before blocking
	CooldownSeconds  int `toml:"cooldown_seconds"`  // how long checks stay suppressed
}

// DebugConfig controls browser debug-capture sessions
type DebugConfig struct {
	FlushIntervalMs        int `toml:"flush_interval_ms"`        // capture buffer flush cadence
	MaxDurationSeconds     int `toml:"max_duration_seconds"`     // hard cap on requested session duration
	DefaultDurationSeconds int `toml:"default_duration_seconds"` // applied when no limit is requested
	BodyByteLimit          int `toml:"body_byte_limit"`          // captured body truncation budget
}

// SLAConfig controls the analytics cache
type SLAConfig struct {
	CacheEnabled    bool `toml:"cache_enabled"`
	CacheTTLSeconds int  `toml:"cache_ttl_seconds"`
}

// BrowserConfig controls the shared headless Chrome instance
type BrowserConfig struct {
	Kind           string `toml:"kind"` // only "chromium" is supported
	Headless       bool   `toml:"headless"`
	ExecutablePath string `toml:"executable_path"` // empty = chromedp default lookup
	NoSandbox      bool   `toml:"no_sandbox"`
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in vigilo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Timezone: "UTC",
		},
		Probe: ProbeConfig{
			Mode:           "http",
			TimeoutSeconds: 30,
			Retries:        2,
			UserAgent:      "vigilo/1.0 (availability monitor)",
			RetryInterval:  500 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			CooldownSeconds:  300,
		},
		Debug: DebugConfig{
			FlushIntervalMs:        1000,
			MaxDurationSeconds:     600,
			DefaultDurationSeconds: 300,
			BodyByteLimit:          10240,
		},
		SLA: SLAConfig{
			CacheEnabled:    true,
			CacheTTLSeconds: 300,
		},
		Browser: BrowserConfig{
			Kind:      "chromium",
			Headless:  true,
			NoSandbox: false,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override
// earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VIGILO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("VIGILO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VIGILO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("VIGILO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("VIGILO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("VIGILO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if enabled := os.Getenv("VIGILO_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if tz := os.Getenv("VIGILO_SCHEDULER_TIMEZONE"); tz != "" {
		config.Scheduler.Timezone = tz
	}

	if mode := os.Getenv("VIGILO_PROBE_MODE"); mode != "" {
		config.Probe.Mode = mode
	}
	if timeout := os.Getenv("VIGILO_PROBE_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Probe.TimeoutSeconds = t
		}
	}
	if retries := os.Getenv("VIGILO_PROBE_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Probe.Retries = r
		}
	}

	if threshold := os.Getenv("VIGILO_BREAKER_FAILURE_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil {
			config.Breaker.FailureThreshold = t
		}
	}
	if cooldown := os.Getenv("VIGILO_BREAKER_COOLDOWN_SECONDS"); cooldown != "" {
		if c, err := strconv.Atoi(cooldown); err == nil {
			config.Breaker.CooldownSeconds = c
		}
	}

	if flush := os.Getenv("VIGILO_DEBUG_FLUSH_INTERVAL_MS"); flush != "" {
		if f, err := strconv.Atoi(flush); err == nil {
			config.Debug.FlushIntervalMs = f
		}
	}
	if maxDur := os.Getenv("VIGILO_DEBUG_MAX_DURATION_SECONDS"); maxDur != "" {
		if m, err := strconv.Atoi(maxDur); err == nil {
			config.Debug.MaxDurationSeconds = m
		}
	}
	if bodyLimit := os.Getenv("VIGILO_DEBUG_BODY_BYTE_LIMIT"); bodyLimit != "" {
		if b, err := strconv.Atoi(bodyLimit); err == nil {
			config.Debug.BodyByteLimit = b
		}
	}

	if enabled := os.Getenv("VIGILO_SLA_CACHE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.SLA.CacheEnabled = e
		}
	}
	if ttl := os.Getenv("VIGILO_SLA_CACHE_TTL_SECONDS"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.SLA.CacheTTLSeconds = t
		}
	}

	if kind := os.Getenv("VIGILO_BROWSER_KIND"); kind != "" {
		config.Browser.Kind = kind
	}
	if headless := os.Getenv("VIGILO_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if execPath := os.Getenv("VIGILO_BROWSER_EXECUTABLE_PATH"); execPath != "" {
		config.Browser.ExecutablePath = execPath
	}
	if noSandbox := os.Getenv("VIGILO_BROWSER_NO_SANDBOX"); noSandbox != "" {
		if ns, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = ns
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Location resolves the scheduler timezone. An empty or unknown name
// falls back to UTC.
func (s *SchedulerConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FlushInterval returns the capture flush cadence as a duration.
func (d *DebugConfig) FlushInterval() time.Duration {
	if d.FlushIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(d.FlushIntervalMs) * time.Millisecond
}

// Cooldown returns the breaker cooldown as a duration.
func (b *BreakerConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownSeconds) * time.Second
}

// CacheTTL returns the analytics cache TTL as a duration.
func (s *SLAConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
