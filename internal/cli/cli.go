// Package cli defines the kong command tree and wires each command to
// its implementation.
package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"btscout/internal/cache"
	"btscout/internal/commands"
	"btscout/internal/config"
	"btscout/internal/logging"
	"btscout/internal/tui"
)

// CLI is the root command structure for btscout.
type CLI struct {
	Verbose bool   `short:"v" help:"Enable verbose (debug) logging"`
	Config  string `help:"Config file path" type:"path"`
	NoCache bool   `help:"Disable the device cache for this run"`

	// Default command - TUI
	Tui TuiCmd `cmd:"" default:"withargs" help:"Launch interactive TUI (default)"`

	Scan    ScanCmd    `cmd:"" help:"Scan for nearby devices and pick one to inspect"`
	Inspect InspectCmd `cmd:"" help:"Connect to one device and list everything it exposes"`
	Sweep   SweepCmd   `cmd:"" help:"Scan, then inspect every discovered device concurrently"`
	Monitor MonitorCmd `cmd:"" help:"Stream advertisements until interrupted"`
	Check   CheckCmd   `cmd:"" help:"Check adapter, permissions, and cache health"`
	Cache   CacheCmd   `cmd:"" help:"Inspect and maintain the device cache"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// env loads the config and wires the logger and cache for one command
// run. The cleanup func closes both.
func (c *CLI) env() (commands.Env, func(), error) {
	path := c.Config
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return commands.Env{}, nil, err
	}
	if c.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return commands.Env{}, nil, err
	}
	slog.SetDefault(logger)

	env := commands.Env{Config: cfg, Logger: logger}
	if _, err := os.Stat(path); err == nil {
		env.ConfigPath = path
	}

	if !c.NoCache && cfg.Cache.Enabled {
		store, err := cache.Open(cfg.CachePath())
		if err != nil {
			logger.Warn("cache unavailable, continuing without it", "error", err)
		} else {
			env.Store = store
			evicted, err := store.Prune(cache.Policy{
				MaxAge:     cfg.CacheMaxAge(),
				MaxDevices: cfg.Cache.MaxDevices,
			})
			if err != nil {
				logger.Warn("cache prune", "error", err)
			} else if evicted > 0 {
				logger.Debug("cache pruned", "evicted", evicted)
			}
		}
	}

	cleanup := func() {
		if env.Store != nil {
			env.Store.Close()
		}
		closeLog()
	}
	return env, cleanup, nil
}

// --- TUI Command ---

type TuiCmd struct{}

func (c *TuiCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return tui.Run(tui.Deps{
		Config: env.Config,
		Logger: env.Logger,
		Store:  env.Store,
	})
}

// --- Scan Command ---

type ScanCmd struct {
	Duration time.Duration `help:"Scan pass length (default from config)"`
	Filter   string        `help:"Only show devices whose name contains this"`
	MinRSSI  int           `name:"min-rssi" help:"Ignore devices weaker than this (dBm, e.g. -80)"`
	JSON     bool          `help:"Emit JSON instead of the table"`
}

func (c *ScanCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.Scan(context.Background(), env, commands.ScanOptions{
		Duration: c.Duration,
		Filter:   c.Filter,
		MinRSSI:  c.MinRSSI,
		JSON:     c.JSON,
	})
}

// --- Inspect Command ---

type InspectCmd struct {
	Target string `arg:"" help:"Device address or name substring"`
	NoRead bool   `help:"Skip sampling characteristic values"`
	JSON   bool   `help:"Emit JSON instead of text"`
}

func (c *InspectCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.Inspect(context.Background(), env, commands.InspectOptions{
		Target: c.Target,
		NoRead: c.NoRead,
		JSON:   c.JSON,
	})
}

// --- Sweep Command ---

type SweepCmd struct {
	Duration time.Duration `help:"Scan pass length (default from config)"`
	Workers  int           `help:"Concurrent inspections (default from config)"`
	NoRead   bool          `help:"Skip sampling characteristic values"`
	JSON     bool          `help:"Emit JSON instead of text"`
}

func (c *SweepCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.Sweep(context.Background(), env, commands.SweepOptions{
		Duration: c.Duration,
		Workers:  c.Workers,
		NoRead:   c.NoRead,
		JSON:     c.JSON,
	})
}

// --- Monitor Command ---

type MonitorCmd struct {
	Filter  string `help:"Only report devices whose name contains this"`
	MinRSSI int    `name:"min-rssi" help:"Ignore devices weaker than this (dBm)"`
}

func (c *MonitorCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.Monitor(context.Background(), env, commands.MonitorOptions{
		Filter:  c.Filter,
		MinRSSI: c.MinRSSI,
	})
}

// --- Check Command ---

type CheckCmd struct{}

func (c *CheckCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.RunChecks(context.Background(), env)
}

// --- Cache Commands ---

type CacheCmd struct {
	List    CacheListCmd    `cmd:"" help:"List cached devices"`
	Show    CacheShowCmd    `cmd:"" help:"Show one cached device and its services"`
	History CacheHistoryCmd `cmd:"" help:"Show recent scan sessions"`
	Prune   CachePruneCmd   `cmd:"" help:"Evict stale devices now"`
	Clear   CacheClearCmd   `cmd:"" help:"Wipe all cached history"`
}

type CacheListCmd struct {
	JSON bool `help:"Emit JSON instead of the table"`
}

func (c *CacheListCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.CacheList(env, c.JSON)
}

type CacheShowCmd struct {
	Address string `arg:"" help:"Device address as shown by scan"`
	JSON    bool   `help:"Emit JSON instead of text"`
}

func (c *CacheShowCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.CacheShow(env, c.Address, c.JSON)
}

type CacheHistoryCmd struct {
	Limit int  `default:"20" help:"Sessions to show"`
	JSON  bool `help:"Emit JSON instead of the table"`
}

func (c *CacheHistoryCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.CacheHistory(env, c.Limit, c.JSON)
}

type CachePruneCmd struct{}

func (c *CachePruneCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.CachePrune(env)
}

type CacheClearCmd struct {
	Yes bool `help:"Skip the confirmation prompt"`
}

func (c *CacheClearCmd) Run(globals *CLI) error {
	env, done, err := globals.env()
	if err != nil {
		return err
	}
	defer done()
	return commands.CacheClear(env, c.Yes)
}

// --- Version Command ---

type VersionCmd struct{}

func (c *VersionCmd) Run(globals *CLI) error {
	commands.PrintVersion()
	return nil
}
