package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"btscout/internal/ble"
	"btscout/internal/names"
	"btscout/internal/scan"
)

// MonitorOptions mirror the monitor command flags.
type MonitorOptions struct {
	Filter  string
	MinRSSI int
}

// Monitor streams advertisements until interrupted, printing a line for
// every new device and for meaningful changes to known ones, then a
// summary of everything seen.
func Monitor(ctx context.Context, env Env, opts MonitorOptions) error {
	adapter, err := ble.Adapter()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	PrintBanner("Bluetooth Monitor")
	fmt.Println("[*] Streaming advertisements, press Ctrl-C to stop")
	fmt.Println()

	events, errch := scan.Stream(ctx, adapter, scan.Options{
		Filter:  opts.Filter,
		MinRSSI: opts.MinRSSI,
	})

	started := time.Now()
	seen := make(map[string]scan.Device)
	for ev := range events {
		prev, known := seen[ev.Device.Address]
		seen[ev.Device.Address] = ev.Device

		switch {
		case ev.New || !known:
			printMonitorLine("[+]", "NEW", ev.Device)
		case materialChange(prev, ev.Device):
			printMonitorLine("[*]", "UPD", ev.Device)
		}
	}
	if err := <-errch; err != nil {
		return err
	}

	devices := make([]scan.Device, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	scan.SortBySignal(devices)

	fmt.Printf("\n[+] Monitored for %s: %d device(s)\n\n", time.Since(started).Round(time.Second), len(devices))
	if len(devices) > 0 {
		fmt.Print(DeviceTable(devices))
	}
	return nil
}

func printMonitorLine(prefix, tag string, d scan.Device) {
	name := d.Name
	if name == "" {
		name = "Unknown"
	}
	fmt.Printf("%s %s %s  %-20s %4s dBm  %s%s\n",
		prefix, time.Now().Format("15:04:05"), tag, d.Address, FormatRSSI(d.RSSI), name, serviceHints(d))
}

// serviceHints names the advertised services, at most three, so the
// stream stays one line per device.
func serviceHints(d scan.Device) string {
	if len(d.Services) == 0 {
		return ""
	}
	var parts []string
	for _, u := range d.Services {
		parts = append(parts, names.Describe(u))
		if len(parts) == 3 {
			break
		}
	}
	if len(d.Services) > 3 {
		parts = append(parts, "...")
	}
	return "  (" + strings.Join(parts, ", ") + ")"
}

// materialChange filters the advertisement firehose down to what a
// human watching the stream would care about.
func materialChange(prev, cur scan.Device) bool {
	if prev.Name == "" && cur.Name != "" {
		return true
	}
	if prev.RSSI == 0 && cur.RSSI != 0 {
		return true
	}
	delta := int(cur.RSSI) - int(prev.RSSI)
	if delta < 0 {
		delta = -delta
	}
	return prev.RSSI != 0 && delta >= 5
}
