// Package inspect connects to one device and walks its GATT table:
// services, characteristics, and a sample of every readable value.
package inspect

import (
	"context"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"

	"btscout/internal/ble"
	"btscout/internal/names"
	"btscout/internal/util"
)

// Characteristic is one enumerated characteristic. Readability is
// determined empirically: the client API exposes no property bits, so a
// successful read is the only evidence.
type Characteristic struct {
	UUID     bluetooth.UUID `json:"-"`
	ID       string         `json:"uuid"`
	Name     string         `json:"name"`
	Readable bool           `json:"readable"`
	Value    []byte         `json:"-"`
	Text     string         `json:"value,omitempty"`
}

// Service is one enumerated service.
type Service struct {
	UUID            bluetooth.UUID   `json:"-"`
	ID              string           `json:"uuid"`
	Name            string           `json:"name"`
	Characteristics []Characteristic `json:"characteristics"`
	Error           string           `json:"error,omitempty"`
}

// Report is the result of inspecting one device.
type Report struct {
	Address  string        `json:"address"`
	Name     string        `json:"name,omitempty"`
	Services []Service     `json:"services"`
	When     time.Time     `json:"when"`
	Took     time.Duration `json:"-"`
}

// Totals counts services and characteristics in the report.
func (r *Report) Totals() (services, characteristics int) {
	services = len(r.Services)
	for _, s := range r.Services {
		characteristics += len(s.Characteristics)
	}
	return services, characteristics
}

// Options controls a single inspection.
type Options struct {
	SkipValues  bool          // don't sample characteristic values
	FindTimeout time.Duration // budget for locating the advertisement
}

func (o Options) findTimeout() time.Duration {
	if o.FindTimeout <= 0 {
		return 10 * time.Second
	}
	return o.FindTimeout
}

// Target locates a device by address or name substring, connects through
// the retrying connector, and enumerates everything it exposes.
func Target(ctx context.Context, adapter *bluetooth.Adapter, connector *ble.Connector, target string, opts Options) (*Report, error) {
	result, err := ble.Find(ctx, adapter, target, opts.findTimeout())
	if err != nil {
		return nil, err
	}
	return Known(ctx, connector, result.Address, result.LocalName(), opts)
}

// Known inspects a device a scan already located, skipping the search.
// The device is always disconnected before returning.
func Known(ctx context.Context, connector *ble.Connector, addr bluetooth.Address, name string, opts Options) (*Report, error) {
	start := time.Now()
	device, err := connector.Connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer device.Disconnect()

	report, err := walk(liveDevice{device}, opts)
	if err != nil {
		return nil, err
	}
	report.Address = addr.String()
	report.Name = name
	report.When = start
	report.Took = time.Since(start)
	return report, nil
}

// gattService is the slice of bluetooth.DeviceService the walker needs;
// DeviceService satisfies it as-is.
type gattService interface {
	UUID() bluetooth.UUID
	DiscoverCharacteristics(uuids []bluetooth.UUID) ([]bluetooth.DeviceCharacteristic, error)
}

var _ gattService = bluetooth.DeviceService{}

// gattDevice yields the services of a connected device.
type gattDevice interface {
	Services() ([]gattService, error)
}

// liveDevice adapts a connected bluetooth.Device to the walker seam.
type liveDevice struct {
	device bluetooth.Device
}

func (d liveDevice) Services() ([]gattService, error) {
	discovered, err := d.device.DiscoverServices(nil)
	if err != nil {
		return nil, err
	}
	services := make([]gattService, len(discovered))
	for i, s := range discovered {
		services[i] = s
	}
	return services, nil
}

func walk(device gattDevice, opts Options) (*Report, error) {
	services, err := device.Services()
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	report := &Report{}
	for _, svc := range services {
		s := newService(svc.UUID())

		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			// Some stacks refuse characteristic discovery on protected
			// services; record it and keep walking.
			s.Error = err.Error()
			report.Services = append(report.Services, s)
			continue
		}

		for i := range chars {
			c := newCharacteristic(chars[i].UUID())
			if !opts.SkipValues {
				buf := make([]byte, 256)
				if n, err := chars[i].Read(buf); err == nil {
					sampleValue(&c, buf[:n])
				}
			}
			s.Characteristics = append(s.Characteristics, c)
		}
		report.Services = append(report.Services, s)
	}
	return report, nil
}

func newService(u bluetooth.UUID) Service {
	return Service{
		UUID: u,
		ID:   u.String(),
		Name: displayName(u),
	}
}

func newCharacteristic(u bluetooth.UUID) Characteristic {
	return Characteristic{
		UUID: u,
		ID:   u.String(),
		Name: displayName(u),
	}
}

// displayName separates custom UUIDs from registered-but-unlisted ones:
// a vendor UUID is a deliberate choice, not a gap in the tables.
func displayName(u bluetooth.UUID) string {
	if name, ok := names.Lookup(u); ok {
		return name
	}
	if names.IsVendor(u) {
		return "Vendor-specific"
	}
	return "Unknown"
}

// sampleValue records a successful read.
func sampleValue(c *Characteristic, data []byte) {
	c.Readable = true
	c.Value = append([]byte(nil), data...)
	c.Text = util.FormatValue(c.Value)
}
