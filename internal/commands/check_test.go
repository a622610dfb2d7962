package commands

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"btscout/internal/cache"
	"btscout/internal/config"
)

func TestStatusIcon(t *testing.T) {
	if got := statusIcon(StatusPass); got != "[PASS]" {
		t.Errorf("pass icon = %q", got)
	}
	if got := statusIcon(StatusWarn); got != "[WARN]" {
		t.Errorf("warn icon = %q", got)
	}
	if got := statusIcon(StatusFail); got != "[FAIL]" {
		t.Errorf("fail icon = %q", got)
	}
}

func TestCheckConfig(t *testing.T) {
	env := Env{Config: config.Defaults()}
	res := checkConfig(context.Background(), env)
	if res.Status != StatusPass {
		t.Errorf("status = %s", res.Status)
	}
	if !strings.Contains(res.Message, "defaults") {
		t.Errorf("message = %q", res.Message)
	}

	env.ConfigPath = "/etc/btscout/config.yaml"
	res = checkConfig(context.Background(), env)
	if !strings.Contains(res.Message, env.ConfigPath) {
		t.Errorf("message = %q", res.Message)
	}
}

func TestCheckCacheDisabled(t *testing.T) {
	env := Env{Config: config.Defaults()}
	res := checkCache(context.Background(), env)
	if res.Status != StatusWarn {
		t.Errorf("status = %s, want WARN when the store is nil", res.Status)
	}
}

func TestCheckCacheHealthy(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	env := Env{Config: config.Defaults(), Store: store}
	res := checkCache(context.Background(), env)
	if res.Status != StatusPass {
		t.Errorf("status = %s: %s", res.Status, res.Message)
	}
	if !strings.Contains(res.Message, "0 device(s)") {
		t.Errorf("message = %q", res.Message)
	}
}
