package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"tinygo.org/x/bluetooth"

	"btscout/internal/ble"
	"btscout/internal/inspect"
	"btscout/internal/scan"
)

// ScanOptions mirror the scan command flags. Zero values fall back to
// the configured defaults.
type ScanOptions struct {
	Duration time.Duration
	Filter   string
	MinRSSI  int
	JSON     bool
}

// Scan runs one discovery pass and prints the numbered device table.
// On a terminal it then loops the selection prompt so devices can be
// inspected in place.
func Scan(ctx context.Context, env Env, opts ScanOptions) error {
	adapter, err := ble.Adapter()
	if err != nil {
		return err
	}

	sopts := scan.Options{Duration: opts.Duration, Filter: opts.Filter, MinRSSI: opts.MinRSSI}
	if sopts.Duration <= 0 {
		sopts.Duration = env.Config.ScanDuration()
	}
	if sopts.Filter == "" {
		sopts.Filter = env.Config.Scan.Filter
	}
	if sopts.MinRSSI == 0 {
		sopts.MinRSSI = env.Config.Scan.MinRSSI
	}

	if !opts.JSON {
		PrintBanner("Bluetooth Device Scanner")
		fmt.Printf("[*] Scanning for Bluetooth devices (%s)...\n", sopts.Duration)
	}

	started := time.Now()
	devices, err := scan.Run(ctx, adapter, sopts)
	if err != nil {
		return err
	}
	env.rememberScan(started, time.Since(started), devices)

	if opts.JSON {
		if err := PrintJSON(devices); err != nil {
			return err
		}
		if len(devices) == 0 {
			return ErrNoDevices
		}
		return nil
	}

	if len(devices) == 0 {
		printNoDevices()
		return ErrNoDevices
	}

	fmt.Printf("[+] Found %d device(s)\n\n", len(devices))
	fmt.Print(DeviceTable(devices))

	if !stdinIsTTY() {
		return nil
	}
	return selectLoop(ctx, env, adapter, devices)
}

// selectLoop is the interactive half of scan: pick a number, inspect
// it, come back for another, until 'q' or EOF.
func selectLoop(ctx context.Context, env Env, adapter *bluetooth.Adapter, devices []scan.Device) error {
	connector := env.connector(adapter)
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n[?] Enter device number to inspect (or 'q' to quit): ")
		if !in.Scan() {
			fmt.Println()
			return nil
		}
		idx, quit, ok := parseSelection(in.Text(), len(devices))
		if quit {
			return nil
		}
		if !ok {
			fmt.Printf("[!] Invalid input. Enter a number between 1 and %d, or 'q'.\n", len(devices))
			continue
		}
		inspectKnown(ctx, env, connector, devices[idx])
	}
}

// inspectKnown connects to one scanned device and prints its report.
// A failed connection is explained but does not end the session.
func inspectKnown(ctx context.Context, env Env, connector *ble.Connector, d scan.Device) {
	label := d.Name
	if label == "" {
		label = d.Address
	}
	fmt.Printf("\n[*] Connecting to %s...\n", label)

	rep, err := inspect.Known(ctx, connector, d.Addr, d.Name, inspect.Options{})
	if err != nil {
		printConnectFailure(err)
		return
	}
	env.rememberInspect(rep)
	printReport(rep)
}
