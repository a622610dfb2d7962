package cache

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	address    TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	rssi       INTEGER NOT NULL DEFAULT 0,
	first_seen TEXT NOT NULL,
	last_seen  TEXT NOT NULL,
	seen_count INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS services (
	address        TEXT NOT NULL REFERENCES devices(address) ON DELETE CASCADE,
	uuid           TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	char_count     INTEGER NOT NULL DEFAULT 0,
	last_inspected TEXT NOT NULL,
	PRIMARY KEY (address, uuid)
);

CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	started     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	devices     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started);
`

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStore, err)
	}
	return nil
}
