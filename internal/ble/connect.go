package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"tinygo.org/x/bluetooth"
)

// Breaker settings. A device that fails this many Connect calls in a row
// is considered gone; further attempts fail fast until the cool-down.
const (
	breakerMaxFailures uint32 = 3
	breakerCooldown           = 30 * time.Second
)

// ConnectPolicy controls retry behavior for a single logical connect.
type ConnectPolicy struct {
	Attempts int           // total tries, minimum 1
	Delay    time.Duration // pause between tries
	Timeout  time.Duration // budget per try
}

func (p ConnectPolicy) withDefaults() ConnectPolicy {
	if p.Attempts < 1 {
		p.Attempts = 3
	}
	if p.Delay <= 0 {
		p.Delay = 2 * time.Second
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	return p
}

// Connector dials devices with retry and a per-address circuit breaker,
// so one dead device cannot stall a multi-device pass with full retry
// cycles on every visit.
type Connector struct {
	policy ConnectPolicy
	logger *slog.Logger
	dial   func(addr bluetooth.Address) (bluetooth.Device, error)

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[bluetooth.Device]
}

// NewConnector wraps adapter with the given retry policy.
func NewConnector(adapter *bluetooth.Adapter, policy ConnectPolicy, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		policy: policy.withDefaults(),
		logger: logger,
		dial: func(addr bluetooth.Address) (bluetooth.Device, error) {
			return adapter.Connect(addr, bluetooth.ConnectionParams{})
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker[bluetooth.Device]),
	}
}

// Connect dials addr, retrying per policy. When the address has failed
// repeatedly its breaker is open and the call fails fast with
// ErrBreakerOpen.
func (c *Connector) Connect(ctx context.Context, addr bluetooth.Address) (bluetooth.Device, error) {
	br := c.breakerFor(addr.String())
	dev, err := br.Execute(func() (bluetooth.Device, error) {
		return c.connectWithRetry(ctx, addr)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return bluetooth.Device{}, fmt.Errorf("%w: %s", ErrBreakerOpen, addr.String())
		}
		return bluetooth.Device{}, err
	}
	return dev, nil
}

func (c *Connector) connectWithRetry(ctx context.Context, addr bluetooth.Address) (bluetooth.Device, error) {
	var lastErr error
	for attempt := 1; attempt <= c.policy.Attempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("retrying connect",
				"device", addr.String(),
				"attempt", attempt,
				"delay", c.policy.Delay,
			)
			select {
			case <-time.After(c.policy.Delay):
			case <-ctx.Done():
				return bluetooth.Device{}, ctx.Err()
			}
		}

		dev, err := c.connectOnce(ctx, addr)
		if err == nil {
			return dev, nil
		}
		if ctx.Err() != nil {
			return bluetooth.Device{}, ctx.Err()
		}
		lastErr = err
		c.logger.Debug("connect attempt failed",
			"device", addr.String(),
			"attempt", attempt,
			"err", err,
		)
	}
	return bluetooth.Device{}, fmt.Errorf("connect %s: %w (attempts: %d)", addr.String(), lastErr, c.policy.Attempts)
}

type dialResult struct {
	dev bluetooth.Device
	err error
}

func (c *Connector) connectOnce(ctx context.Context, addr bluetooth.Address) (bluetooth.Device, error) {
	result := make(chan dialResult, 1)
	go func() {
		dev, err := c.dial(addr)
		result <- dialResult{dev, err}
	}()

	timer := time.NewTimer(c.policy.Timeout)
	defer timer.Stop()

	select {
	case r := <-result:
		return r.dev, r.err
	case <-ctx.Done():
		go discardLateDial(result)
		return bluetooth.Device{}, ctx.Err()
	case <-timer.C:
		go discardLateDial(result)
		return bluetooth.Device{}, fmt.Errorf("%w: %s after %s", ErrConnectTimeout, addr.String(), c.policy.Timeout)
	}
}

// discardLateDial disconnects a connection that landed after its attempt
// was already abandoned.
func discardLateDial(result <-chan dialResult) {
	if r := <-result; r.err == nil {
		r.dev.Disconnect()
	}
}

func (c *Connector) breakerFor(addr string) *gobreaker.CircuitBreaker[bluetooth.Device] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if br, ok := c.breakers[addr]; ok {
		return br
	}
	br := gobreaker.NewCircuitBreaker[bluetooth.Device](gobreaker.Settings{
		Name:        "connect:" + addr,
		MaxRequests: 1, // one probe in half-open state
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// A user abort is not evidence the device is gone.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	c.breakers[addr] = br
	return br
}
