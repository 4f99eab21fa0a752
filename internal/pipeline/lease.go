package pipeline

import (
	"path/filepath"
	"sync"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

// Leases grants exclusive, non-queueing ownership of filesystem paths.
type Leases struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLeases creates an empty lease table.
func NewLeases() *Leases {
	return &Leases{held: make(map[string]struct{})}
}

// key normalises path the way the registry stores roots, so relative and
// absolute spellings of one directory collide.
func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Acquire takes every path or none. A path already held returns
// *perrors.BusyError naming it. The returned release is idempotent.
func (l *Leases) Acquire(paths ...string) (func(), error) {
	keys := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		k := key(p)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, k := range keys {
		if _, busy := l.held[k]; busy {
			return nil, &perrors.BusyError{Resource: k}
		}
	}
	for _, k := range keys {
		l.held[k] = struct{}{}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for _, k := range keys {
				delete(l.held, k)
			}
		})
	}, nil
}

// Held reports whether path is currently leased.
func (l *Leases) Held(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key(path)]
	return ok
}
