// Package scan turns the adapter's advertisement callbacks into bounded,
// deduplicated discovery passes and continuous streams.
package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"btscout/internal/names"
)

// Device is the aggregated view of one address across every
// advertisement seen during a pass.
type Device struct {
	Address   string            `json:"address"`
	Name      string            `json:"name,omitempty"`
	RSSI      int16             `json:"rssi"`
	Services  []bluetooth.UUID  `json:"-"` // advertised service hints
	FirstSeen time.Time         `json:"first_seen"`
	LastSeen  time.Time         `json:"last_seen"`
	Packets   int               `json:"packets"`
	Addr      bluetooth.Address `json:"-"` // platform address for connecting
}

// Options bounds a discovery pass.
type Options struct {
	Duration time.Duration // default 8s
	Filter   string        // case-insensitive name substring
	MinRSSI  int           // 0 = no floor, otherwise e.g. -80
}

func (o Options) duration() time.Duration {
	if o.Duration <= 0 {
		return 8 * time.Second
	}
	return o.Duration
}

// matches applies the name filter and RSSI floor. Devices with unknown
// RSSI pass the floor; there is nothing to judge them by.
func (o Options) matches(d Device) bool {
	if o.Filter != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(o.Filter)) {
		return false
	}
	if o.MinRSSI != 0 && d.RSSI != 0 && int(d.RSSI) < o.MinRSSI {
		return false
	}
	return true
}

// Event is one advertisement delivered by Stream.
type Event struct {
	Device Device
	New    bool
}

// aggregator folds advertisements into per-address devices. The adapter
// may invoke its callback from another goroutine, so all access locks.
type aggregator struct {
	mu      sync.Mutex
	devices map[string]*Device
	now     func() time.Time
}

func newAggregator() *aggregator {
	return &aggregator{
		devices: make(map[string]*Device),
		now:     time.Now,
	}
}

func (a *aggregator) observe(address string, addr bluetooth.Address, name string, rssi int16, services []bluetooth.UUID) (Device, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.now()
	d, ok := a.devices[address]
	if !ok {
		d = &Device{
			Address:   address,
			Name:      name,
			RSSI:      rssi,
			Services:  services,
			FirstSeen: ts,
			LastSeen:  ts,
			Packets:   1,
			Addr:      addr,
		}
		a.devices[address] = d
		return *d, true
	}

	// A named advertisement never loses its name to a later anonymous
	// scan-response packet.
	if name != "" {
		d.Name = name
	}
	if rssi != 0 {
		d.RSSI = rssi
	}
	d.Services = mergeUUIDs(d.Services, services)
	d.LastSeen = ts
	d.Packets++
	return *d, false
}

func mergeUUIDs(have, add []bluetooth.UUID) []bluetooth.UUID {
	for _, u := range add {
		seen := false
		for _, h := range have {
			if h == u {
				seen = true
				break
			}
		}
		if !seen {
			have = append(have, u)
		}
	}
	return have
}

// snapshot returns the filtered devices in signal order.
func (a *aggregator) snapshot(opts Options) []Device {
	a.mu.Lock()
	out := make([]Device, 0, len(a.devices))
	for _, d := range a.devices {
		if opts.matches(*d) {
			out = append(out, *d)
		}
	}
	a.mu.Unlock()

	SortBySignal(out)
	return out
}

// SortBySignal orders devices by RSSI descending with unknown RSSI (0)
// last, address as tiebreak.
func SortBySignal(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		ri, rj := devices[i].RSSI, devices[j].RSSI
		switch {
		case ri == 0 && rj != 0:
			return false
		case ri != 0 && rj == 0:
			return true
		case ri != rj:
			return ri > rj
		}
		return devices[i].Address < devices[j].Address
	})
}

// Run performs one bounded discovery pass and returns the devices seen.
// Cancelling ctx ends the pass early with whatever was collected.
func Run(ctx context.Context, adapter *bluetooth.Adapter, opts Options) ([]Device, error) {
	agg := newAggregator()

	scanCtx, cancel := context.WithTimeout(ctx, opts.duration())
	defer cancel()

	// A pass entered with ctx already cancelled would spend the
	// watchdog's stop before Scan registers and then never end.
	if err := scanCtx.Err(); err != nil {
		return nil, err
	}

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() { adapter.StopScan() })
	}
	go func() {
		<-scanCtx.Done()
		stop()
	}()

	err := adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		agg.observe(r.Address.String(), r.Address, r.LocalName(), r.RSSI, names.AdvertisedServices(r))
	})
	stop()
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return agg.snapshot(opts), nil
}

// Stream starts a continuous scan delivering every matching
// advertisement until ctx ends. A slow consumer drops events rather than
// wedging the adapter callback. The error channel carries at most one
// scan failure and both channels close when the stream ends.
func Stream(ctx context.Context, adapter *bluetooth.Adapter, opts Options) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errch := make(chan error, 1)

	// As in Run, a ctx already cancelled here would spend the stop
	// before Scan registers. End the stream before it starts.
	if err := ctx.Err(); err != nil {
		errch <- err
		close(events)
		close(errch)
		return events, errch
	}

	agg := newAggregator()
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() { adapter.StopScan() })
	}
	go func() {
		<-ctx.Done()
		stop()
	}()

	go func() {
		defer close(events)
		defer close(errch)
		err := adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
			dev, isNew := agg.observe(r.Address.String(), r.Address, r.LocalName(), r.RSSI, names.AdvertisedServices(r))
			if !opts.matches(dev) {
				return
			}
			select {
			case events <- Event{Device: dev, New: isNew}:
			default:
			}
		})
		stop()
		if err != nil {
			errch <- fmt.Errorf("scan: %w", err)
		}
	}()

	return events, errch
}
