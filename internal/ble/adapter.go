package ble

import (
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

var (
	// ErrAdapterEnable means the radio could not be brought up, usually a
	// permissions or powered-off problem.
	ErrAdapterEnable = errors.New("bluetooth adapter enable failed")
	// ErrDeviceNotFound means no advertisement matched the target before
	// the deadline.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrConnectTimeout means a single connect attempt exceeded its budget.
	ErrConnectTimeout = errors.New("connect timed out")
	// ErrBreakerOpen means the per-device circuit breaker is rejecting
	// attempts after repeated failures.
	ErrBreakerOpen = errors.New("connect circuit open")
)

var (
	enableOnce sync.Once
	enableErr  error
)

// Adapter returns the default Bluetooth adapter, enabling it on first
// use. Enabling twice is harmless but slow on some stacks, hence the Once.
func Adapter() (*bluetooth.Adapter, error) {
	enableOnce.Do(func() {
		if err := bluetooth.DefaultAdapter.Enable(); err != nil {
			enableErr = fmt.Errorf("%w: %v", ErrAdapterEnable, err)
		}
	})
	if enableErr != nil {
		return nil, enableErr
	}
	return bluetooth.DefaultAdapter, nil
}
