package store

import (
	"fmt"
)

// ProjectRecord is the persisted form of a registry entry.
type ProjectRecord struct {
	Name string
	Path string
}

// SaveProjects replaces the stored project list with records, preserving order.
// The write is a single transaction: either the whole list lands or nothing does.
func (s *Store) SaveProjects(records []ProjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM projects`); err != nil {
		return fmt.Errorf("failed to clear projects: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO projects (name, path, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(r.Name, r.Path, i); err != nil {
			return fmt.Errorf("failed to save project %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit projects: %w", err)
	}
	s.logger.Debug().Int("count", len(records)).Msg("projects saved")
	return nil
}

// LoadProjects returns the stored project list in registration order.
func (s *Store) LoadProjects() ([]ProjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, path FROM projects ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var records []ProjectRecord
	for rows.Next() {
		var r ProjectRecord
		if err := rows.Scan(&r.Name, &r.Path); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return records, nil
}
