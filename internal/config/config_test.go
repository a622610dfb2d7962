package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Scan.Duration != "8s" {
		t.Errorf("Scan.Duration = %q, want %q", cfg.Scan.Duration, "8s")
	}
	if cfg.Connect.Attempts != 3 {
		t.Errorf("Connect.Attempts = %d, want 3", cfg.Connect.Attempts)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(Defaults()) = %v", err)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Duration != "8s" {
		t.Errorf("expected defaults, got Scan.Duration=%q", cfg.Scan.Duration)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
scan:
  duration: "12s"
  min_rssi: -75
connect:
  attempts: 5
cache:
  enabled: false
log:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Duration != "12s" {
		t.Errorf("Scan.Duration = %q, want %q", cfg.Scan.Duration, "12s")
	}
	if cfg.Scan.MinRSSI != -75 {
		t.Errorf("Scan.MinRSSI = %d, want -75", cfg.Scan.MinRSSI)
	}
	if cfg.Connect.Attempts != 5 {
		t.Errorf("Connect.Attempts = %d, want 5", cfg.Connect.Attempts)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	// Unset keys keep their defaults.
	if cfg.Connect.Timeout != "10s" {
		t.Errorf("Connect.Timeout = %q, want default %q", cfg.Connect.Timeout, "10s")
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("scan: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load(bad yaml) = nil error, want parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BTSCOUT_SCAN_DURATION", "3s")
	t.Setenv("BTSCOUT_CACHE_ENABLED", "false")
	t.Setenv("BTSCOUT_LOG_LEVEL", "debug")
	t.Setenv("BTSCOUT_CONNECT_ATTEMPTS", "7")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Scan.Duration != "3s" {
		t.Errorf("Scan.Duration = %q, want %q", cfg.Scan.Duration, "3s")
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Connect.Attempts != 7 {
		t.Errorf("Connect.Attempts = %d, want 7", cfg.Connect.Attempts)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Scan.Duration = "soon"
	cfg.Log.Level = "loud"
	cfg.Sweep.Workers = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate = nil, want error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("got %d problems, want 3: %v", len(verr.Errors), verr.Errors)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Defaults()
	if got := cfg.ScanDuration(); got != 8*time.Second {
		t.Errorf("ScanDuration = %v, want 8s", got)
	}

	cfg.Connect.Timeout = "250ms"
	if got := cfg.ConnectTimeout(); got != 250*time.Millisecond {
		t.Errorf("ConnectTimeout = %v, want 250ms", got)
	}

	// Garbage falls back rather than panicking mid-scan.
	cfg.Connect.RetryDelay = "whenever"
	if got := cfg.RetryDelay(); got != 2*time.Second {
		t.Errorf("RetryDelay fallback = %v, want 2s", got)
	}
}

func TestCachePath(t *testing.T) {
	t.Setenv("BTSCOUT_DATA_DIR", "/tmp/btscout-test")

	cfg := Defaults()
	if got := cfg.CachePath(); got != filepath.Join("/tmp/btscout-test", "cache.db") {
		t.Errorf("CachePath = %q", got)
	}

	cfg.Cache.Path = "/elsewhere/cache.db"
	if got := cfg.CachePath(); got != "/elsewhere/cache.db" {
		t.Errorf("CachePath explicit = %q", got)
	}
}
