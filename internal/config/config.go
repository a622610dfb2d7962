package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ScanConfig holds discovery pass settings.
type ScanConfig struct {
	Duration      string `yaml:"duration"`       // e.g. "8s"
	QuickDuration string `yaml:"quick_duration"` // short pass used by check
	MinRSSI       int    `yaml:"min_rssi"`       // 0 = no floor, otherwise e.g. -80
	Filter        string `yaml:"filter"`         // case-insensitive name substring
}

// ConnectConfig holds connection retry settings.
type ConnectConfig struct {
	Timeout    string `yaml:"timeout"`
	Attempts   int    `yaml:"attempts"`
	RetryDelay string `yaml:"retry_delay"`
}

// CacheConfig holds the persistent device cache settings.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"` // empty = <data dir>/cache.db
	MaxDevices int    `yaml:"max_devices"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// SweepConfig holds multi-device inspection settings.
type SweepConfig struct {
	Workers int `yaml:"workers"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stderr, stdout, or a file path
}

// Config is the top-level application configuration.
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Connect ConnectConfig `yaml:"connect"`
	Cache   CacheConfig   `yaml:"cache"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Log     LogConfig     `yaml:"log"`
}

// ValidationError aggregates every problem found in a config file so the
// user can fix them in one go.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Errors, "; "))
}

// Defaults returns a fully populated configuration.
func Defaults() *Config {
	return &Config{
		Scan: ScanConfig{
			Duration:      "8s",
			QuickDuration: "5s",
		},
		Connect: ConnectConfig{
			Timeout:    "10s",
			Attempts:   3,
			RetryDelay: "2s",
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxDevices: 200,
			MaxAgeDays: 30,
		},
		Sweep: SweepConfig{
			Workers: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DataDir returns the directory for btscout state (config, cache).
func DataDir() string {
	if dir := os.Getenv("BTSCOUT_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".btscout"
	}
	return filepath.Join(home, ".btscout")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// Load reads the config file at path. A missing file is not an error:
// defaults plus environment overrides are returned instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides lets BTSCOUT_* environment variables override file
// values. Flags are applied later by the CLI layer and beat both.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BTSCOUT_SCAN_DURATION"); v != "" {
		cfg.Scan.Duration = v
	}
	if v := os.Getenv("BTSCOUT_SCAN_FILTER"); v != "" {
		cfg.Scan.Filter = v
	}
	if v := os.Getenv("BTSCOUT_SCAN_MIN_RSSI"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.MinRSSI = n
		}
	}
	if v := os.Getenv("BTSCOUT_CONNECT_TIMEOUT"); v != "" {
		cfg.Connect.Timeout = v
	}
	if v := os.Getenv("BTSCOUT_CONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Connect.Attempts = n
		}
	}
	if v := os.Getenv("BTSCOUT_CONNECT_RETRY_DELAY"); v != "" {
		cfg.Connect.RetryDelay = v
	}
	if v := os.Getenv("BTSCOUT_CACHE_ENABLED"); v == "false" {
		cfg.Cache.Enabled = false
	}
	if v := os.Getenv("BTSCOUT_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("BTSCOUT_CACHE_MAX_DEVICES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxDevices = n
		}
	}
	if v := os.Getenv("BTSCOUT_CACHE_MAX_AGE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxAgeDays = n
		}
	}
	if v := os.Getenv("BTSCOUT_SWEEP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sweep.Workers = n
		}
	}
	if v := os.Getenv("BTSCOUT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("BTSCOUT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BTSCOUT_LOG_OUTPUT"); v != "" {
		cfg.Log.Output = v
	}
}

// Validate checks the whole config and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []string

	for _, d := range []struct{ name, value string }{
		{"scan.duration", cfg.Scan.Duration},
		{"scan.quick_duration", cfg.Scan.QuickDuration},
		{"connect.timeout", cfg.Connect.Timeout},
		{"connect.retry_delay", cfg.Connect.RetryDelay},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not a duration", d.name, d.value))
		}
	}

	if cfg.Connect.Attempts < 1 {
		errs = append(errs, "connect.attempts: must be at least 1")
	}
	if cfg.Sweep.Workers < 1 {
		errs = append(errs, "sweep.workers: must be at least 1")
	}
	if cfg.Cache.MaxDevices < 0 {
		errs = append(errs, "cache.max_devices: must not be negative")
	}
	if cfg.Cache.MaxAgeDays < 0 {
		errs = append(errs, "cache.max_age_days: must not be negative")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level: unknown level %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format: unknown format %q", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ScanDuration returns the parsed full scan pass length.
func (c *Config) ScanDuration() time.Duration {
	return parseDuration(c.Scan.Duration, 8*time.Second)
}

// QuickScanDuration returns the parsed short pass length used by check.
func (c *Config) QuickScanDuration() time.Duration {
	return parseDuration(c.Scan.QuickDuration, 5*time.Second)
}

// ConnectTimeout returns the parsed per-attempt connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return parseDuration(c.Connect.Timeout, 10*time.Second)
}

// RetryDelay returns the parsed pause between connect attempts.
func (c *Config) RetryDelay() time.Duration {
	return parseDuration(c.Connect.RetryDelay, 2*time.Second)
}

// CachePath resolves the cache database location.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(DataDir(), "cache.db")
}

// CacheMaxAge converts the retention setting to a duration.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeDays) * 24 * time.Hour
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
