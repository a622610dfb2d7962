package inspect

import (
	"errors"
	"testing"

	"tinygo.org/x/bluetooth"
)

func TestNewServiceResolvesName(t *testing.T) {
	s := newService(bluetooth.New16BitUUID(0x180F))
	if s.Name != "Battery Service" {
		t.Errorf("Name = %q, want %q", s.Name, "Battery Service")
	}
	if s.ID != s.UUID.String() {
		t.Errorf("ID = %q, want %q", s.ID, s.UUID.String())
	}
}

func TestNewServiceVendorUUID(t *testing.T) {
	u, err := bluetooth.ParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	if err != nil {
		t.Fatal(err)
	}
	s := newService(u)
	if s.Name != "Vendor-specific" {
		t.Errorf("Name = %q, want Vendor-specific", s.Name)
	}
}

func TestNewServiceUnregisteredAssigned(t *testing.T) {
	// On the Bluetooth base but not in the tables.
	s := newService(bluetooth.New16BitUUID(0x1899))
	if s.Name != "Unknown" {
		t.Errorf("Name = %q, want Unknown", s.Name)
	}
}

func TestSampleValueText(t *testing.T) {
	c := newCharacteristic(bluetooth.New16BitUUID(0x2A29))
	sampleValue(&c, []byte("Acme Devices Inc"))

	if !c.Readable {
		t.Error("Readable = false after successful read")
	}
	if c.Text != "Acme Devices Inc" {
		t.Errorf("Text = %q", c.Text)
	}
}

func TestSampleValueBinary(t *testing.T) {
	c := newCharacteristic(bluetooth.New16BitUUID(0x2A19))
	sampleValue(&c, []byte{0x5F})

	if c.Text != "5F" {
		t.Errorf("Text = %q, want hex", c.Text)
	}
}

func TestSampleValueCopiesBuffer(t *testing.T) {
	buf := []byte("volatile")
	c := newCharacteristic(bluetooth.New16BitUUID(0x2A00))
	sampleValue(&c, buf)
	buf[0] = 'X'

	if string(c.Value) != "volatile" {
		t.Errorf("Value aliased the read buffer: %q", c.Value)
	}
}

func TestSampleValueEmptyRead(t *testing.T) {
	c := newCharacteristic(bluetooth.New16BitUUID(0x2A00))
	sampleValue(&c, nil)

	if !c.Readable {
		t.Error("zero-length read still proves readability")
	}
	if c.Text != "(empty)" {
		t.Errorf("Text = %q, want (empty)", c.Text)
	}
}

func TestReportTotals(t *testing.T) {
	r := &Report{
		Services: []Service{
			{Characteristics: []Characteristic{{}, {}}},
			{Characteristics: []Characteristic{{}}},
			{},
		},
	}
	services, chars := r.Totals()
	if services != 3 || chars != 3 {
		t.Errorf("Totals = (%d, %d), want (3, 3)", services, chars)
	}
}

func TestOptionsFindTimeoutDefault(t *testing.T) {
	if got := (Options{}).findTimeout(); got.Seconds() != 10 {
		t.Errorf("default find timeout = %v, want 10s", got)
	}
}

// fakeService scripts one service's characteristic discovery.
type fakeService struct {
	uuid  bluetooth.UUID
	chars []bluetooth.DeviceCharacteristic
	err   error
}

func (f fakeService) UUID() bluetooth.UUID { return f.uuid }

func (f fakeService) DiscoverCharacteristics(_ []bluetooth.UUID) ([]bluetooth.DeviceCharacteristic, error) {
	return f.chars, f.err
}

// fakeDevice scripts service discovery for the walker.
type fakeDevice struct {
	services []gattService
	err      error
}

func (f fakeDevice) Services() ([]gattService, error) { return f.services, f.err }

func TestWalkContinuesPastRefusedService(t *testing.T) {
	// Zero-value characteristics cannot serve reads, so sampling stays off.
	dev := fakeDevice{services: []gattService{
		fakeService{uuid: bluetooth.New16BitUUID(0x1812), err: errors.New("att: insufficient authentication")},
		fakeService{uuid: bluetooth.New16BitUUID(0x180A), chars: make([]bluetooth.DeviceCharacteristic, 2)},
	}}

	rep, err := walk(dev, Options{SkipValues: true})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(rep.Services) != 2 {
		t.Fatalf("got %d services, want 2", len(rep.Services))
	}
	if rep.Services[0].Error != "att: insufficient authentication" {
		t.Errorf("Services[0].Error = %q", rep.Services[0].Error)
	}
	if len(rep.Services[0].Characteristics) != 0 {
		t.Errorf("refused service recorded %d characteristics", len(rep.Services[0].Characteristics))
	}
	if rep.Services[1].Error != "" {
		t.Errorf("Services[1].Error = %q, want clean service after the refusal", rep.Services[1].Error)
	}
	if len(rep.Services[1].Characteristics) != 2 {
		t.Errorf("Services[1] recorded %d characteristics, want 2", len(rep.Services[1].Characteristics))
	}
}

func TestWalkServiceWithoutCharacteristics(t *testing.T) {
	dev := fakeDevice{services: []gattService{
		fakeService{uuid: bluetooth.New16BitUUID(0x1802)},
	}}

	rep, err := walk(dev, Options{})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	services, chars := rep.Totals()
	if services != 1 || chars != 0 {
		t.Errorf("Totals = (%d, %d), want (1, 0)", services, chars)
	}
	if rep.Services[0].Error != "" {
		t.Errorf("Error = %q, want empty", rep.Services[0].Error)
	}
}

func TestWalkDiscoverServicesError(t *testing.T) {
	wantErr := errors.New("not connected")
	if _, err := walk(fakeDevice{err: wantErr}, Options{}); !errors.Is(err, wantErr) {
		t.Errorf("walk error = %v, want wrapped %v", err, wantErr)
	}
}
