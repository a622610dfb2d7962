// Package cache persists scan and inspection results to a local SQLite
// database so past sightings survive restarts. The cache is an accelerator,
// not a dependency: callers treat every error here as a warning and keep
// going.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"btscout/internal/inspect"
	"btscout/internal/scan"
)

var (
	// ErrStore wraps any database-level failure.
	ErrStore = errors.New("device cache")
	// ErrNotFound is returned when an address has never been cached.
	ErrNotFound = errors.New("not in cache")
)

// CachedDevice is one row of scan history.
type CachedDevice struct {
	Address   string
	Name      string
	RSSI      int16
	FirstSeen time.Time
	LastSeen  time.Time
	SeenCount int
	Services  int
}

// CachedService is one service recorded by a past inspection.
type CachedService struct {
	UUID          string
	Name          string
	CharCount     int
	LastInspected time.Time
}

// Session summarizes one completed scan pass.
type Session struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Devices  int
}

// Policy bounds how much history the cache retains.
type Policy struct {
	MaxAge     time.Duration
	MaxDevices int
}

func (p Policy) withDefaults() Policy {
	if p.MaxAge <= 0 {
		p.MaxAge = 30 * 24 * time.Hour
	}
	if p.MaxDevices <= 0 {
		p.MaxDevices = 200
	}
	return p
}

// Store is a SQLite-backed device cache. Safe for concurrent use; the
// underlying pool is pinned to a single connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the cache database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: create dir: %v", ErrStore, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrStore, err)
	}

	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY churn between goroutines.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrStore, pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewSessionID returns a ULID for a scan session started at t.
func NewSessionID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// RecordScan upserts one row per sighted device. A named advertisement
// never loses its name to a later anonymous one, and an unknown RSSI never
// overwrites a measured one.
func (s *Store) RecordScan(devices []scan.Device) error {
	if len(devices) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStore, err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO devices (address, name, rssi, first_seen, last_seen, seen_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			name       = CASE WHEN excluded.name != '' THEN excluded.name ELSE name END,
			rssi       = CASE WHEN excluded.rssi != 0 THEN excluded.rssi ELSE rssi END,
			last_seen  = excluded.last_seen,
			seen_count = seen_count + 1
	`
	for _, d := range devices {
		_, err := tx.Exec(upsert,
			d.Address,
			d.Name,
			d.RSSI,
			d.FirstSeen.UTC().Format(time.RFC3339),
			d.LastSeen.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("%w: upsert %s: %v", ErrStore, d.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return nil
}

// RecordSession appends one scan pass to the history.
func (s *Store) RecordSession(sess Session) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, started, duration_ms, devices) VALUES (?, ?, ?, ?)`,
		sess.ID,
		sess.Started.UTC().Format(time.RFC3339),
		sess.Duration.Milliseconds(),
		sess.Devices,
	)
	if err != nil {
		return fmt.Errorf("%w: record session: %v", ErrStore, err)
	}
	return nil
}

// RecordInspect replaces the cached service list for the report's device.
// The device row is created if the scan that found it was never persisted.
func (s *Store) RecordInspect(rep *inspect.Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStore, err)
	}
	defer tx.Rollback()

	when := rep.When.UTC().Format(time.RFC3339)

	// seen_count stays put on conflict: inspecting is not a new sighting.
	_, err = tx.Exec(`
		INSERT INTO devices (address, name, rssi, first_seen, last_seen, seen_count)
		VALUES (?, ?, 0, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			name      = CASE WHEN excluded.name != '' THEN excluded.name ELSE name END,
			last_seen = excluded.last_seen
	`, rep.Address, rep.Name, when, when)
	if err != nil {
		return fmt.Errorf("%w: touch device %s: %v", ErrStore, rep.Address, err)
	}

	if _, err := tx.Exec(`DELETE FROM services WHERE address = ?`, rep.Address); err != nil {
		return fmt.Errorf("%w: clear services: %v", ErrStore, err)
	}
	for _, svc := range rep.Services {
		_, err := tx.Exec(
			`INSERT INTO services (address, uuid, name, char_count, last_inspected) VALUES (?, ?, ?, ?, ?)`,
			rep.Address, svc.ID, svc.Name, len(svc.Characteristics), when,
		)
		if err != nil {
			return fmt.Errorf("%w: insert service %s: %v", ErrStore, svc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return nil
}

// Devices returns every cached device, most recently seen first, with the
// number of services recorded for each.
func (s *Store) Devices() ([]CachedDevice, error) {
	rows, err := s.db.Query(`
		SELECT d.address, d.name, d.rssi, d.first_seen, d.last_seen, d.seen_count,
		       COUNT(sv.uuid)
		FROM devices d
		LEFT JOIN services sv ON sv.address = d.address
		GROUP BY d.address
		ORDER BY d.last_seen DESC, d.address ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query devices: %v", ErrStore, err)
	}
	defer rows.Close()

	var out []CachedDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate devices: %v", ErrStore, err)
	}
	return out, nil
}

// Device returns one cached device and its recorded services.
func (s *Store) Device(address string) (CachedDevice, []CachedService, error) {
	row := s.db.QueryRow(`
		SELECT d.address, d.name, d.rssi, d.first_seen, d.last_seen, d.seen_count,
		       COUNT(sv.uuid)
		FROM devices d
		LEFT JOIN services sv ON sv.address = d.address
		WHERE d.address = ?
		GROUP BY d.address
	`, address)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedDevice{}, nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if err != nil {
		return CachedDevice{}, nil, err
	}

	rows, err := s.db.Query(`
		SELECT uuid, name, char_count, last_inspected
		FROM services WHERE address = ? ORDER BY uuid ASC
	`, address)
	if err != nil {
		return CachedDevice{}, nil, fmt.Errorf("%w: query services: %v", ErrStore, err)
	}
	defer rows.Close()

	var services []CachedService
	for rows.Next() {
		var svc CachedService
		var inspected string
		if err := rows.Scan(&svc.UUID, &svc.Name, &svc.CharCount, &inspected); err != nil {
			return CachedDevice{}, nil, fmt.Errorf("%w: scan service: %v", ErrStore, err)
		}
		svc.LastInspected = parseTime(inspected)
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return CachedDevice{}, nil, fmt.Errorf("%w: iterate services: %v", ErrStore, err)
	}
	return d, services, nil
}

// Sessions returns the most recent scan passes, newest first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, started, duration_ms, devices
		FROM sessions ORDER BY started DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query sessions: %v", ErrStore, err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var started string
		var ms int64
		if err := rows.Scan(&sess.ID, &started, &ms, &sess.Devices); err != nil {
			return nil, fmt.Errorf("%w: scan session: %v", ErrStore, err)
		}
		sess.Started = parseTime(started)
		sess.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sessions: %v", ErrStore, err)
	}
	return out, nil
}

// Prune evicts stale history: first every device unseen for longer than
// MaxAge, then the oldest devices beyond the MaxDevices cap. Sessions older
// than MaxAge are swept in the same transaction. Returns the number of
// devices evicted.
func (s *Store) Prune(p Policy) (int, error) {
	p = p.withDefaults()
	cutoff := s.now().UTC().Add(-p.MaxAge).Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrStore, err)
	}
	defer tx.Rollback()

	evicted := 0

	// RFC3339 UTC strings sort chronologically, so the comparison can stay
	// in SQL.
	res, err := tx.Exec(`DELETE FROM devices WHERE last_seen < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: evict by age: %v", ErrStore, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		evicted += int(n)
	}

	var remaining int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("%w: count devices: %v", ErrStore, err)
	}
	if excess := remaining - p.MaxDevices; excess > 0 {
		res, err := tx.Exec(`
			DELETE FROM devices WHERE address IN (
				SELECT address FROM devices ORDER BY last_seen ASC, address ASC LIMIT ?
			)
		`, excess)
		if err != nil {
			return 0, fmt.Errorf("%w: evict over cap: %v", ErrStore, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			evicted += int(n)
		}
	}

	if _, err := tx.Exec(`DELETE FROM sessions WHERE started < ?`, cutoff); err != nil {
		return 0, fmt.Errorf("%w: sweep sessions: %v", ErrStore, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return evicted, nil
}

// Clear drops all cached history.
func (s *Store) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStore, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"services", "sessions", "devices"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("%w: clear %s: %v", ErrStore, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (CachedDevice, error) {
	var d CachedDevice
	var first, last string
	err := row.Scan(&d.Address, &d.Name, &d.RSSI, &first, &last, &d.SeenCount, &d.Services)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CachedDevice{}, err
		}
		return CachedDevice{}, fmt.Errorf("%w: scan device: %v", ErrStore, err)
	}
	d.FirstSeen = parseTime(first)
	d.LastSeen = parseTime(last)
	return d, nil
}

// parseTime tolerates malformed rows; a zero time beats a dead cache.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
