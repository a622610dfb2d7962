// Package commands implements the CLI operations: scanning, inspecting,
// sweeping, monitoring, environment checks, and cache maintenance.
package commands

import (
	"errors"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"

	"btscout/internal/ble"
	"btscout/internal/cache"
	"btscout/internal/config"
	"btscout/internal/inspect"
	"btscout/internal/scan"
)

// ErrNoDevices reports a pass that found nothing. The command has
// already printed the explanation; main only turns it into exit status 1.
var ErrNoDevices = errors.New("no devices found")

// Env carries the dependencies every command shares.
type Env struct {
	Config     *config.Config
	ConfigPath string // "" when running on built-in defaults
	Logger     *slog.Logger
	Store      *cache.Store // nil when caching is disabled
}

// connector builds the retrying connector from the configured policy.
func (e Env) connector(adapter *bluetooth.Adapter) *ble.Connector {
	return ble.NewConnector(adapter, ble.ConnectPolicy{
		Attempts: e.Config.Connect.Attempts,
		Delay:    e.Config.RetryDelay(),
		Timeout:  e.Config.ConnectTimeout(),
	}, e.Logger)
}

// rememberScan persists one pass. Cache trouble is logged and swallowed;
// a broken cache must never break a scan.
func (e Env) rememberScan(started time.Time, took time.Duration, devices []scan.Device) {
	if e.Store == nil {
		return
	}
	if err := e.Store.RecordScan(devices); err != nil {
		e.Logger.Warn("cache: record scan", "error", err)
		return
	}
	sess := cache.Session{
		ID:       cache.NewSessionID(started),
		Started:  started,
		Duration: took,
		Devices:  len(devices),
	}
	if err := e.Store.RecordSession(sess); err != nil {
		e.Logger.Warn("cache: record session", "error", err)
	}
}

func (e Env) rememberInspect(rep *inspect.Report) {
	if e.Store == nil {
		return
	}
	if err := e.Store.RecordInspect(rep); err != nil {
		e.Logger.Warn("cache: record inspect", "error", err)
	}
}
