package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"btscout/internal/ble"
	"btscout/internal/inspect"
	"btscout/internal/util"
)

// InspectOptions mirror the inspect command flags.
type InspectOptions struct {
	Target string // MAC address or name substring
	NoRead bool
	JSON   bool
}

// Inspect locates one device by address or name fragment, connects, and
// prints every service and characteristic it exposes.
func Inspect(ctx context.Context, env Env, opts InspectOptions) error {
	adapter, err := ble.Adapter()
	if err != nil {
		return err
	}

	if !opts.JSON {
		fmt.Printf("[*] Looking for %q...\n", opts.Target)
	}

	rep, err := inspect.Target(ctx, adapter, env.connector(adapter), opts.Target, inspect.Options{
		SkipValues:  opts.NoRead,
		FindTimeout: env.Config.ScanDuration(),
	})
	if err != nil {
		if !opts.JSON {
			if errors.Is(err, ble.ErrDeviceNotFound) {
				fmt.Printf("[!] %v\n", err)
				fmt.Println("[*] Make sure the device is advertising, or run a scan first")
			} else {
				printConnectFailure(err)
			}
		}
		return err
	}
	env.rememberInspect(rep)

	if opts.JSON {
		return PrintJSON(rep)
	}
	printReport(rep)
	return nil
}

// printReport renders one inspection: every service, its
// characteristics, and sampled values as text or hex.
func printReport(rep *inspect.Report) {
	name := rep.Name
	if name == "" {
		name = "Unknown"
	}
	fmt.Printf("[+] Connected to %s (%s)\n", name, rep.Address)
	fmt.Println("[*] Discovering services...")
	fmt.Println()

	for _, svc := range rep.Services {
		fmt.Printf("Service: %s (%s)\n", svc.ID, svc.Name)
		if svc.Error != "" {
			fmt.Printf("  [!] Characteristics unavailable: %s\n", svc.Error)
			continue
		}
		for _, c := range svc.Characteristics {
			switch {
			case c.Readable && len(c.Value) > 16 && !util.IsTextData(c.Value):
				// Long binary values get a dump block instead of one
				// unreadable hex line.
				fmt.Printf("  Characteristic: %s (%s)\n", c.ID, c.Name)
				for _, line := range strings.Split(strings.TrimRight(util.HexDump(c.Value), "\n"), "\n") {
					fmt.Printf("    %s\n", line)
				}
			case c.Readable:
				fmt.Printf("  Characteristic: %s (%s) = %s\n", c.ID, c.Name, c.Text)
			default:
				fmt.Printf("  Characteristic: %s (%s)\n", c.ID, c.Name)
			}
		}
	}

	services, characteristics := rep.Totals()
	fmt.Printf("\n[+] Total: %d services, %d characteristics\n", services, characteristics)
}
