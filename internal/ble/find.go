package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// MatchesTarget reports whether an advertisement matches a user-supplied
// target: an exact address, or a case-insensitive name substring.
func MatchesTarget(target, address, name string) bool {
	if strings.EqualFold(target, address) {
		return true
	}
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(target))
}

// Find scans until an advertisement matches target, then stops. The
// returned ScanResult carries the platform address needed to connect;
// this is also how string addresses become connectable, since macOS
// hands out opaque identifiers instead of MACs.
func Find(ctx context.Context, adapter *bluetooth.Adapter, target string, timeout time.Duration) (bluetooth.ScanResult, error) {
	var (
		mu       sync.Mutex
		found    bool
		match    bluetooth.ScanResult
		stopOnce sync.Once
	)
	stop := func() {
		stopOnce.Do(func() { adapter.StopScan() })
	}

	watchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	go func() {
		<-watchCtx.Done()
		stop()
	}()

	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !MatchesTarget(target, result.Address.String(), result.LocalName()) {
			return
		}
		mu.Lock()
		if !found {
			found = true
			match = result
		}
		mu.Unlock()
		stop()
	})
	stop()
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !found {
		if ctx.Err() != nil {
			return bluetooth.ScanResult{}, ctx.Err()
		}
		return bluetooth.ScanResult{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, target)
	}
	return match, nil
}
