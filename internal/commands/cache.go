package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"btscout/internal/cache"
	"btscout/internal/util"
)

func requireStore(env Env) (*cache.Store, error) {
	if env.Store == nil {
		return nil, errors.New("cache is disabled (--no-cache, or cache.enabled: false)")
	}
	return env.Store, nil
}

// CacheList prints every cached device, most recent sighting first.
func CacheList(env Env, jsonOut bool) error {
	store, err := requireStore(env)
	if err != nil {
		return err
	}
	devices, err := store.Devices()
	if err != nil {
		return err
	}

	if jsonOut {
		return PrintJSON(devices)
	}
	if len(devices) == 0 {
		fmt.Println("[!] Cache is empty. Run a scan first.")
		return nil
	}

	fmt.Printf("[+] %d cached device(s)\n\n", len(devices))
	fmt.Printf("%-28s %-20s %8s %6s %5s  %s\n", "Name", "Address", "RSSI dBm", "Seen", "Svcs", "Last seen")
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Printf("%-28s %-20s %8s %6d %5d  %s\n",
			util.Truncate(name, 28), d.Address, FormatRSSI(d.RSSI),
			d.SeenCount, d.Services, humanize.Time(d.LastSeen))
	}
	return nil
}

// CacheShow prints one cached device and its recorded services.
func CacheShow(env Env, address string, jsonOut bool) error {
	store, err := requireStore(env)
	if err != nil {
		return err
	}
	device, services, err := store.Device(address)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			fmt.Printf("[!] %s is not in the cache\n", address)
			fmt.Println("[*] Run a scan, or check the address")
		}
		return err
	}

	if jsonOut {
		return PrintJSON(struct {
			Device   cache.CachedDevice    `json:"device"`
			Services []cache.CachedService `json:"services"`
		}{device, services})
	}

	name := device.Name
	if name == "" {
		name = "Unknown"
	}
	fmt.Printf("[+] %s (%s)\n", name, device.Address)
	fmt.Printf("    First seen: %s\n", humanize.Time(device.FirstSeen))
	fmt.Printf("    Last seen:  %s\n", humanize.Time(device.LastSeen))
	fmt.Printf("    Sightings:  %d\n", device.SeenCount)
	fmt.Printf("    RSSI:       %s dBm\n", FormatRSSI(device.RSSI))

	if len(services) == 0 {
		fmt.Println("\n[*] No services recorded; inspect the device to fill them in")
		return nil
	}
	fmt.Printf("\nServices (%d, inspected %s):\n", len(services), humanize.Time(services[0].LastInspected))
	for _, svc := range services {
		name := svc.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Printf("  %-38s %-28s %d characteristic(s)\n", svc.UUID, util.Truncate(name, 28), svc.CharCount)
	}
	return nil
}

// CacheHistory prints recent scan sessions, newest first.
func CacheHistory(env Env, limit int, jsonOut bool) error {
	store, err := requireStore(env)
	if err != nil {
		return err
	}
	sessions, err := store.Sessions(limit)
	if err != nil {
		return err
	}

	if jsonOut {
		return PrintJSON(sessions)
	}
	if len(sessions) == 0 {
		fmt.Println("[!] No scan sessions recorded yet")
		return nil
	}

	fmt.Printf("[+] %d session(s)\n\n", len(sessions))
	fmt.Printf("%-26s  %-20s %10s %8s\n", "ID", "Started", "Duration", "Devices")
	for _, sess := range sessions {
		fmt.Printf("%-26s  %-20s %10s %8d\n",
			sess.ID, humanize.Time(sess.Started), sess.Duration.Round(10*time.Millisecond), sess.Devices)
	}
	return nil
}

// CachePrune applies the configured retention policy immediately.
func CachePrune(env Env) error {
	store, err := requireStore(env)
	if err != nil {
		return err
	}
	evicted, err := store.Prune(cache.Policy{
		MaxAge:     env.Config.CacheMaxAge(),
		MaxDevices: env.Config.Cache.MaxDevices,
	})
	if err != nil {
		return err
	}
	if evicted == 0 {
		fmt.Println("[*] Nothing to evict")
		return nil
	}
	fmt.Printf("[+] Evicted %d device(s)\n", evicted)
	return nil
}

// CacheClear wipes all cached history after confirmation.
func CacheClear(env Env, force bool) error {
	store, err := requireStore(env)
	if err != nil {
		return err
	}
	if !force && !ConfirmAction("[?] This wipes all cached scan history. Type 'yes' to continue: ") {
		fmt.Println("[*] Aborted")
		return nil
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("[+] Cache cleared")
	return nil
}
