package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunRecord is a one-line summary of an executed intent. Command output is
// never persisted.
type RunRecord struct {
	ID         string
	Pipeline   string
	Project    string
	Intent     string
	Status     string
	ExitCode   *int // nil when the tool never ran
	Reason     string
	DurationMs int64
	StartedAt  int64
}

// SaveRun records a run, assigning an ID and start time when unset.
func (s *Store) SaveRun(r *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt == 0 {
		r.StartedAt = time.Now().UnixMilli()
	}

	query := `
	INSERT INTO runs (
		id, pipeline, project, intent, status, exit_code, reason, duration_ms, started_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var exitCode sql.NullInt64
	if r.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*r.ExitCode), Valid: true}
	}

	_, err := s.db.Exec(query,
		r.ID, r.Pipeline, r.Project, r.Intent, r.Status, exitCode, r.Reason, r.DurationMs, r.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty project lists
// runs across all projects; limit <= 0 means no limit.
func (s *Store) ListRuns(project string, limit int) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, pipeline, project, intent, status, exit_code, reason, duration_ms, started_at
	FROM runs
	`
	var args []interface{}
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		r := &RunRecord{}
		var exitCode sql.NullInt64
		err := rows.Scan(
			&r.ID, &r.Pipeline, &r.Project, &r.Intent, &r.Status, &exitCode, &r.Reason, &r.DurationMs, &r.StartedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			r.ExitCode = &code
		}
		runs = append(runs, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}
