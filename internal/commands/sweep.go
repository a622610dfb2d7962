package commands

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"btscout/internal/ble"
	"btscout/internal/inspect"
	"btscout/internal/scan"
)

// SweepOptions mirror the sweep command flags.
type SweepOptions struct {
	Duration time.Duration
	Workers  int
	NoRead   bool
	JSON     bool
}

type sweepResult struct {
	device scan.Device
	report *inspect.Report
	err    error
}

// Sweep scans once, then inspects every discovered device concurrently
// on a bounded worker pool, streaming results as they land.
func Sweep(ctx context.Context, env Env, opts SweepOptions) error {
	adapter, err := ble.Adapter()
	if err != nil {
		return err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = env.Config.Sweep.Workers
	}
	if workers <= 0 {
		workers = 3
	}

	sopts := scan.Options{Duration: opts.Duration}
	if sopts.Duration <= 0 {
		sopts.Duration = env.Config.ScanDuration()
	}

	if !opts.JSON {
		PrintBanner("Bluetooth Sweep")
		fmt.Printf("[*] Scanning for Bluetooth devices (%s)...\n", sopts.Duration)
	}

	started := time.Now()
	devices, err := scan.Run(ctx, adapter, sopts)
	if err != nil {
		return err
	}
	env.rememberScan(started, time.Since(started), devices)

	if len(devices) == 0 {
		if opts.JSON {
			if err := PrintJSON([]*inspect.Report{}); err != nil {
				return err
			}
		} else {
			printNoDevices()
		}
		return ErrNoDevices
	}

	if !opts.JSON {
		fmt.Printf("[+] Found %d device(s), inspecting with %d worker(s)\n", len(devices), workers)
	}

	connector := env.connector(adapter)
	jobs := make(chan scan.Device)
	results := make(chan sweepResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				rep, err := inspect.Known(ctx, connector, d.Addr, d.Name, inspect.Options{SkipValues: opts.NoRead})
				results <- sweepResult{device: d, report: rep, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, d := range devices {
			select {
			case jobs <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var reports []*inspect.Report
	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			if !opts.JSON {
				label := res.device.Name
				if label == "" {
					label = res.device.Address
				}
				fmt.Printf("\n[!] %s: %v\n", label, res.err)
			}
			continue
		}
		env.rememberInspect(res.report)
		if opts.JSON {
			reports = append(reports, res.report)
		} else {
			fmt.Println()
			printReport(res.report)
		}
	}

	if opts.JSON {
		sort.Slice(reports, func(i, j int) bool { return reports[i].Address < reports[j].Address })
		return PrintJSON(reports)
	}

	fmt.Printf("\n[+] Sweep complete: %d inspected, %d failed\n", len(devices)-failed, failed)
	return nil
}
