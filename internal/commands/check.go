package commands

import (
	"context"
	"fmt"
	"strings"

	"btscout/internal/ble"
	"btscout/internal/scan"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(ctx context.Context, env Env) CheckResult
}

// RunChecks probes the environment end to end: config, adapter, radio,
// cache. Returns an error when any probe fails so main exits nonzero.
func RunChecks(ctx context.Context, env Env) error {
	checks := []Check{
		{Name: "Config", Fn: checkConfig},
		{Name: "Adapter", Fn: checkAdapter},
		{Name: "Radio", Fn: checkRadio},
		{Name: "Cache", Fn: checkCache},
	}

	fmt.Println("btscout check")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(ctx, env)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above before scanning.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\nScanning should work, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed. Ready to scan.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

func checkConfig(_ context.Context, env Env) CheckResult {
	if env.ConfigPath == "" {
		return CheckResult{
			Status:  StatusPass,
			Message: "built-in defaults (no config file)",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("loaded %s", env.ConfigPath),
	}
}

func checkAdapter(_ context.Context, env Env) CheckResult {
	if _, err := ble.Adapter(); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot enable adapter: %v", err),
			Fix:     "Turn Bluetooth on; on Linux check that bluetoothd is running and your user may use it",
		}
	}
	return CheckResult{Status: StatusPass, Message: "default adapter enabled"}
}

// checkRadio runs a short real pass; permission problems usually only
// show up here, not at enable time.
func checkRadio(ctx context.Context, env Env) CheckResult {
	adapter, err := ble.Adapter()
	if err != nil {
		return CheckResult{Status: StatusFail, Message: "adapter unavailable, skipping scan"}
	}

	quick := env.Config.QuickScanDuration()
	devices, err := scan.Run(ctx, adapter, scan.Options{Duration: quick})
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("scan failed: %v", err),
			Fix:     "Grant scan permissions (bluetooth group, or CAP_NET_ADMIN on the binary)",
		}
	}
	if len(devices) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("scan ran %s but saw nothing", quick),
			Fix:     "Put a device in discoverable mode nearby and re-run",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("saw %d device(s) in %s", len(devices), quick),
	}
}

func checkCache(_ context.Context, env Env) CheckResult {
	if env.Store == nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: "cache disabled",
			Fix:     "Remove --no-cache or set cache.enabled: true to keep scan history",
		}
	}
	devices, err := env.Store.Devices()
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cache unreadable: %v", err),
			Fix:     fmt.Sprintf("Delete %s and let the next scan recreate it", env.Config.CachePath()),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d device(s) cached at %s", len(devices), env.Config.CachePath()),
	}
}
