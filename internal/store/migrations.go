package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// Time columns hold mode-local keys: milliseconds since the Unix epoch for
// wall-clock owners, hours since (day 1, hour 0) for round-based owners.
// The owners table pins each owner to one mode, so keys within an owner's
// partition are always mutually comparable.
var migrations = []migration{
	{
		Version:     1,
		Description: "owners: one row per agent, pinning its clock mode",
		SQL: `
CREATE TABLE owners (
    owner_id   TEXT PRIMARY KEY,
    time_mode  TEXT NOT NULL CHECK (time_mode IN ('wall', 'round')),
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
);
`,
	},
	{
		Version:     2,
		Description: "nodes: concepts with spaced-repetition memory state",
		SQL: `
CREATE TABLE nodes (
    owner_id        TEXT NOT NULL,
    concept_id      TEXT NOT NULL,

    -- Memory state
    stability       REAL NOT NULL DEFAULT 0,
    difficulty      REAL NOT NULL DEFAULT 0,
    last_review_key INTEGER,
    reps            INTEGER NOT NULL DEFAULT 0,
    review_state    INTEGER NOT NULL DEFAULT 0,

    created_key     INTEGER NOT NULL,

    PRIMARY KEY (owner_id, concept_id)
);

CREATE INDEX idx_nodes_owner   ON nodes(owner_id);
CREATE INDEX idx_nodes_created ON nodes(owner_id, created_key);
`,
	},
	{
		Version:     3,
		Description: "edges: append-only relation facts",
		SQL: `
CREATE TABLE edges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id    TEXT NOT NULL,
    source      TEXT NOT NULL,
    relation    TEXT NOT NULL,
    target      TEXT NOT NULL,
    sentiment   REAL NOT NULL DEFAULT 0 CHECK (sentiment >= -1.0 AND sentiment <= 1.0),
    created_key INTEGER NOT NULL
);

CREATE INDEX idx_edges_owner   ON edges(owner_id);
CREATE INDEX idx_edges_created ON edges(owner_id, created_key);
CREATE INDEX idx_edges_source  ON edges(owner_id, source);
`,
	},
	{
		Version:     4,
		Description: "logs: append-only interaction audit trail",
		SQL: `
CREATE TABLE logs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id     TEXT NOT NULL,
    kind         TEXT NOT NULL,
    content      TEXT,
    content_uuid TEXT,
    annotations  TEXT,
    ts_key       INTEGER NOT NULL
);

CREATE INDEX idx_logs_owner_ts ON logs(owner_id, ts_key);
CREATE INDEX idx_logs_kind     ON logs(kind, ts_key);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
