package store

import (
	"context"
	"fmt"
	"time"
)

// PruneRuns deletes run history older than maxAge and returns the number of
// rows removed. maxAge <= 0 keeps everything.
func (s *Store) PruneRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats summarises the database for diagnostics.
type Stats struct {
	Path      string
	Schema    int
	Projects  int
	Runs      int
	SizeBytes int64
}

func (st Stats) String() string {
	return fmt.Sprintf("%s (schema %d, %d projects, %d runs, %d KiB)",
		st.Path, st.Schema, st.Projects, st.Runs, st.SizeBytes/1024)
}

// Stats reports row counts and on-disk size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Path: s.path}
	var pages, pageSize int64
	queries := []struct {
		q    string
		dest any
	}{
		{`PRAGMA user_version`, &st.Schema},
		{`SELECT COUNT(*) FROM projects`, &st.Projects},
		{`SELECT COUNT(*) FROM runs`, &st.Runs},
		{`PRAGMA page_count`, &pages},
		{`PRAGMA page_size`, &pageSize},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.q).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}
	st.SizeBytes = pages * pageSize
	return st, nil
}
