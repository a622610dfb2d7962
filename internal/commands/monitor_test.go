package commands

import (
	"strings"
	"testing"

	"tinygo.org/x/bluetooth"

	"btscout/internal/scan"
)

func TestMaterialChange(t *testing.T) {
	tests := []struct {
		name string
		prev scan.Device
		cur  scan.Device
		want bool
	}{
		{"name learned", scan.Device{RSSI: -50}, scan.Device{Name: "Fenix 7", RSSI: -50}, true},
		{"rssi learned", scan.Device{Name: "x"}, scan.Device{Name: "x", RSSI: -50}, true},
		{"big rssi move", scan.Device{Name: "x", RSSI: -50}, scan.Device{Name: "x", RSSI: -58}, true},
		{"small rssi move", scan.Device{Name: "x", RSSI: -50}, scan.Device{Name: "x", RSSI: -53}, false},
		{"steady", scan.Device{Name: "x", RSSI: -50}, scan.Device{Name: "x", RSSI: -50}, false},
	}
	for _, tt := range tests {
		if got := materialChange(tt.prev, tt.cur); got != tt.want {
			t.Errorf("%s: materialChange = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestServiceHints(t *testing.T) {
	if got := serviceHints(scan.Device{}); got != "" {
		t.Errorf("no services: %q", got)
	}

	d := scan.Device{Services: []bluetooth.UUID{
		bluetooth.New16BitUUID(0x180D),
		bluetooth.New16BitUUID(0x180F),
	}}
	if got := serviceHints(d); got != "  (Heart Rate, Battery Service)" {
		t.Errorf("hints = %q", got)
	}

	d.Services = append(d.Services,
		bluetooth.New16BitUUID(0x180A),
		bluetooth.New16BitUUID(0x1812),
	)
	if got := serviceHints(d); !strings.Contains(got, "...") {
		t.Errorf("overflow marker missing: %q", got)
	}
}
