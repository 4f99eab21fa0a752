package store

import (
	"fmt"
)

// migrations[i] takes the schema from user_version i to i+1. Append only.
var migrations = []string{
	`CREATE TABLE projects (
		name     TEXT PRIMARY KEY,
		path     TEXT NOT NULL,
		position INTEGER NOT NULL
	);
	CREATE INDEX idx_projects_position ON projects(position);`,

	`CREATE TABLE runs (
		id          TEXT PRIMARY KEY,
		pipeline    TEXT NOT NULL DEFAULT '',
		project     TEXT NOT NULL,
		intent      TEXT NOT NULL,
		status      TEXT NOT NULL,
		exit_code   INTEGER,
		reason      TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		started_at  INTEGER NOT NULL
	);
	CREATE INDEX idx_runs_project ON runs(project, started_at);
	CREATE INDEX idx_runs_started ON runs(started_at);`,
}

// SchemaVersion is the version a fully migrated database reports.
var SchemaVersion = len(migrations)

// migrate applies pending migrations, each in its own transaction, and
// returns the versions before and after.
func (s *Store) migrate() (from, to int, err error) {
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&from); err != nil {
		return 0, 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if from > SchemaVersion {
		return from, from, fmt.Errorf("database schema version %d is newer than this devterm (%d)", from, SchemaVersion)
	}

	for v := from; v < SchemaVersion; v++ {
		tx, err := s.db.Begin()
		if err != nil {
			return from, v, err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback() //nolint:errcheck
			return from, v, fmt.Errorf("migration %d: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			tx.Rollback() //nolint:errcheck
			return from, v, fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return from, v, fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return from, SchemaVersion, nil
}
