package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"tinygo.org/x/bluetooth"
)

func testAggregator() (*aggregator, *time.Time) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	agg := newAggregator()
	agg.now = func() time.Time { return now }
	return agg, &now
}

func TestObserveNewDevice(t *testing.T) {
	agg, _ := testAggregator()

	dev, isNew := agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "Thermo", -60, nil)
	if !isNew {
		t.Error("first observation reported as not new")
	}
	if dev.Name != "Thermo" || dev.RSSI != -60 || dev.Packets != 1 {
		t.Errorf("device = %+v", dev)
	}
}

func TestObserveUpdatesExisting(t *testing.T) {
	agg, now := testAggregator()

	agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "Thermo", -60, nil)
	*now = now.Add(2 * time.Second)
	dev, isNew := agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "Thermo", -55, nil)

	if isNew {
		t.Error("second observation reported as new")
	}
	if dev.RSSI != -55 {
		t.Errorf("RSSI = %d, want -55", dev.RSSI)
	}
	if dev.Packets != 2 {
		t.Errorf("Packets = %d, want 2", dev.Packets)
	}
	if !dev.LastSeen.After(dev.FirstSeen) {
		t.Error("LastSeen not advanced")
	}
}

func TestObserveKeepsNameOverAnonymousPacket(t *testing.T) {
	agg, _ := testAggregator()

	agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "Thermo", -60, nil)
	dev, _ := agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "", -58, nil)

	if dev.Name != "Thermo" {
		t.Errorf("Name = %q, want %q", dev.Name, "Thermo")
	}
}

func TestObserveKeepsRSSIOverZeroPacket(t *testing.T) {
	agg, _ := testAggregator()

	agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "Thermo", -60, nil)
	dev, _ := agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "Thermo", 0, nil)

	if dev.RSSI != -60 {
		t.Errorf("RSSI = %d, want -60", dev.RSSI)
	}
}

func TestObserveMergesServiceHints(t *testing.T) {
	agg, _ := testAggregator()
	battery := bluetooth.New16BitUUID(0x180F)
	hr := bluetooth.New16BitUUID(0x180D)

	agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "", -60, []bluetooth.UUID{battery})
	dev, _ := agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "", -60, []bluetooth.UUID{battery, hr})

	if len(dev.Services) != 2 {
		t.Errorf("Services = %v, want 2 distinct", dev.Services)
	}
}

func TestSnapshotSortsByRSSIUnknownLast(t *testing.T) {
	agg, _ := testAggregator()

	agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "far", -90, nil)
	agg.observe("AA:00:00:00:00:02", bluetooth.Address{}, "near", -40, nil)
	agg.observe("AA:00:00:00:00:03", bluetooth.Address{}, "quiet", 0, nil)
	agg.observe("AA:00:00:00:00:04", bluetooth.Address{}, "mid", -65, nil)

	devs := agg.snapshot(Options{})
	got := make([]string, len(devs))
	for i, d := range devs {
		got[i] = d.Name
	}

	want := []string{"near", "mid", "far", "quiet"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSnapshotNameFilter(t *testing.T) {
	agg, _ := testAggregator()

	agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "Polar H10", -60, nil)
	agg.observe("AA:00:00:00:00:02", bluetooth.Address{}, "JBL Flip", -50, nil)
	agg.observe("AA:00:00:00:00:03", bluetooth.Address{}, "", -40, nil)

	devs := agg.snapshot(Options{Filter: "polar"})
	if len(devs) != 1 || devs[0].Name != "Polar H10" {
		t.Errorf("filtered = %+v, want only Polar H10", devs)
	}
}

func TestSnapshotRSSIFloor(t *testing.T) {
	agg, _ := testAggregator()

	agg.observe("AA:00:00:00:00:01", bluetooth.Address{}, "near", -50, nil)
	agg.observe("AA:00:00:00:00:02", bluetooth.Address{}, "far", -92, nil)
	agg.observe("AA:00:00:00:00:03", bluetooth.Address{}, "quiet", 0, nil)

	devs := agg.snapshot(Options{MinRSSI: -80})
	if len(devs) != 2 {
		t.Fatalf("floored = %+v, want near and quiet", devs)
	}
	// Unknown RSSI passes the floor.
	if devs[0].Name != "near" || devs[1].Name != "quiet" {
		t.Errorf("floored order = %v, %v", devs[0].Name, devs[1].Name)
	}
}

func TestOptionsDurationDefault(t *testing.T) {
	if got := (Options{}).duration(); got != 8*time.Second {
		t.Errorf("default duration = %v, want 8s", got)
	}
	if got := (Options{Duration: 3 * time.Second}).duration(); got != 3*time.Second {
		t.Errorf("duration = %v, want 3s", got)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The guard returns before the adapter is touched.
	devices, err := Run(ctx, nil, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if devices != nil {
		t.Errorf("devices = %+v, want nil", devices)
	}
}

func TestStreamCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, errs := Stream(ctx, nil, Options{})
	if _, ok := <-events; ok {
		t.Fatal("events delivered a value, want closed channel")
	}
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, ok := <-errs; ok {
		t.Error("error channel not closed after the failure")
	}
}
