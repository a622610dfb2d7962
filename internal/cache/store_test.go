package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"btscout/internal/inspect"
	"btscout/internal/scan"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordScanAndDevices(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	err := s.RecordScan([]scan.Device{
		{Address: "AA:00", Name: "Fenix 7", RSSI: -48, FirstSeen: base, LastSeen: base.Add(2 * time.Second)},
		{Address: "BB:11", Name: "", RSSI: -71, FirstSeen: base, LastSeen: base.Add(8 * time.Second)},
	})
	if err != nil {
		t.Fatalf("RecordScan: %v", err)
	}

	devices, err := s.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices len = %d, want 2", len(devices))
	}
	if devices[0].Address != "BB:11" {
		t.Errorf("order: first = %s, want BB:11 (most recently seen)", devices[0].Address)
	}
	got := devices[1]
	if got.Name != "Fenix 7" || got.RSSI != -48 || got.SeenCount != 1 {
		t.Errorf("round-trip: got %+v", got)
	}
	if !got.LastSeen.Equal(base.Add(2 * time.Second)) {
		t.Errorf("LastSeen = %v", got.LastSeen)
	}
}

func TestRecordScanUpsert(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	first := scan.Device{Address: "AA:00", Name: "Fenix 7", RSSI: -48, FirstSeen: base, LastSeen: base}
	if err := s.RecordScan([]scan.Device{first}); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}

	// A later anonymous sighting with no RSSI must not erase what the first
	// pass learned.
	later := scan.Device{Address: "AA:00", FirstSeen: base.Add(time.Hour), LastSeen: base.Add(time.Hour)}
	if err := s.RecordScan([]scan.Device{later}); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}

	d, _, err := s.Device("AA:00")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if d.Name != "Fenix 7" {
		t.Errorf("Name = %q, want name from first sighting", d.Name)
	}
	if d.RSSI != -48 {
		t.Errorf("RSSI = %d, want -48", d.RSSI)
	}
	if d.SeenCount != 2 {
		t.Errorf("SeenCount = %d, want 2", d.SeenCount)
	}
	if !d.LastSeen.Equal(base.Add(time.Hour)) {
		t.Errorf("LastSeen = %v, want updated", d.LastSeen)
	}
	if !d.FirstSeen.Equal(base) {
		t.Errorf("FirstSeen = %v, want original", d.FirstSeen)
	}
}

func TestRecordInspectReplacesServices(t *testing.T) {
	s := newTestStore(t)
	when := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	rep := &inspect.Report{
		Address: "AA:00",
		Name:    "HR Strap",
		When:    when,
		Services: []inspect.Service{
			{ID: "180d", Name: "Heart Rate", Characteristics: make([]inspect.Characteristic, 2)},
			{ID: "180f", Name: "Battery Service", Characteristics: make([]inspect.Characteristic, 1)},
		},
	}
	if err := s.RecordInspect(rep); err != nil {
		t.Fatalf("RecordInspect: %v", err)
	}

	// A second inspection replaces the list wholesale.
	rep.When = when.Add(time.Minute)
	rep.Services = rep.Services[:1]
	if err := s.RecordInspect(rep); err != nil {
		t.Fatalf("RecordInspect: %v", err)
	}

	d, services, err := s.Device("AA:00")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if d.Name != "HR Strap" {
		t.Errorf("Name = %q, want device row created from report", d.Name)
	}
	if d.Services != 1 {
		t.Errorf("Services = %d, want 1", d.Services)
	}
	if len(services) != 1 {
		t.Fatalf("services len = %d, want 1", len(services))
	}
	svc := services[0]
	if svc.UUID != "180d" || svc.Name != "Heart Rate" || svc.CharCount != 2 {
		t.Errorf("service round-trip: got %+v", svc)
	}
	if !svc.LastInspected.Equal(when.Add(time.Minute)) {
		t.Errorf("LastInspected = %v", svc.LastInspected)
	}
}

func TestDeviceNotFound(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Device("CC:22")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSessions(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		started := base.Add(time.Duration(i) * time.Minute)
		err := s.RecordSession(Session{
			ID:       NewSessionID(started),
			Started:  started,
			Duration: 8 * time.Second,
			Devices:  i,
		})
		if err != nil {
			t.Fatalf("RecordSession: %v", err)
		}
	}

	sessions, err := s.Sessions(2)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions len = %d, want 2", len(sessions))
	}
	if sessions[0].Devices != 2 || sessions[1].Devices != 1 {
		t.Errorf("order: got devices %d, %d; want newest first", sessions[0].Devices, sessions[1].Devices)
	}
	if sessions[0].Duration != 8*time.Second {
		t.Errorf("Duration = %v", sessions[0].Duration)
	}
}

func TestPruneByAge(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	stale := now.Add(-40 * 24 * time.Hour)
	fresh := now.Add(-time.Hour)
	err := s.RecordScan([]scan.Device{
		{Address: "OLD:1", Name: "gone", FirstSeen: stale, LastSeen: stale},
		{Address: "NEW:1", Name: "kept", FirstSeen: fresh, LastSeen: fresh},
	})
	if err != nil {
		t.Fatalf("RecordScan: %v", err)
	}
	// Services for the stale device must go with it.
	err = s.RecordInspect(&inspect.Report{
		Address:  "OLD:1",
		When:     stale,
		Services: []inspect.Service{{ID: "180a", Name: "Device Information"}},
	})
	if err != nil {
		t.Fatalf("RecordInspect: %v", err)
	}

	evicted, err := s.Prune(Policy{})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}

	devices, err := s.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 1 || devices[0].Address != "NEW:1" {
		t.Fatalf("devices after prune: %+v", devices)
	}
	if _, _, err := s.Device("OLD:1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale device still present: %v", err)
	}
}

func TestPruneByCap(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	var devices []scan.Device
	for i := 0; i < 5; i++ {
		seen := now.Add(time.Duration(i-5) * time.Minute)
		devices = append(devices, scan.Device{
			Address:   string(rune('A'+i)) + ":00",
			FirstSeen: seen,
			LastSeen:  seen,
		})
	}
	if err := s.RecordScan(devices); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}

	evicted, err := s.Prune(Policy{MaxDevices: 3})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}

	kept, err := s.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(kept) != 3 {
		t.Fatalf("kept = %d, want 3", len(kept))
	}
	// The two oldest sightings are the ones that go.
	for _, d := range kept {
		if d.Address == "A:00" || d.Address == "B:00" {
			t.Errorf("oldest device %s survived the cap", d.Address)
		}
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	err := s.RecordScan([]scan.Device{{Address: "AA:00", FirstSeen: now, LastSeen: now}})
	if err != nil {
		t.Fatalf("RecordScan: %v", err)
	}
	err = s.RecordSession(Session{ID: NewSessionID(now), Started: now})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	devices, err := s.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("devices after clear = %d", len(devices))
	}
	sessions, err := s.Sessions(10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions after clear = %d", len(sessions))
	}
}

func TestNewSessionID(t *testing.T) {
	a := NewSessionID(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC))
	b := NewSessionID(time.Date(2026, 8, 23, 12, 0, 1, 0, time.UTC))
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("ulid lengths = %d, %d", len(a), len(b))
	}
	// ULIDs sort by timestamp.
	if !(a < b) {
		t.Errorf("ids not ordered: %s >= %s", a, b)
	}
}
