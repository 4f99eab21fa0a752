// Package health runs the environment checks behind `devterm doctor`.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status represents the health of one dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// DefaultTimeout bounds each check.
const DefaultTimeout = 5 * time.Second

// Result is the outcome of one check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// CheckFunc checks a dependency.
type CheckFunc func(ctx context.Context) Result

// Checker manages named checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  zerolog.Logger
}

// NewChecker creates a checker. timeout <= 0 uses DefaultTimeout.
func NewChecker(timeout time.Duration, logger zerolog.Logger) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
		logger:  logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named check, replacing any with the same name.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll executes every check concurrently and returns the results sorted
// by name. A check that outlives its timeout is reported down.
func (c *Checker) RunAll(ctx context.Context) []Result {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make([]Result, 0, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(n string, f CheckFunc) {
			defer wg.Done()
			r := c.run(ctx, n, f)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func (c *Checker) run(ctx context.Context, name string, fn CheckFunc) Result {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() { done <- fn(checkCtx) }()

	select {
	case r := <-done:
		r.Name = name
		if r.Status != StatusOK {
			c.logger.Debug().Str("check", name).Str("status", string(r.Status)).Str("detail", r.Detail).Msg("check not ok")
		}
		return r
	case <-checkCtx.Done():
		c.logger.Warn().Str("check", name).Dur("timeout", c.timeout).Msg("check timed out")
		return Result{Name: name, Status: StatusDown, Detail: "timed out"}
	}
}

// Overall is the worst status among results. No results is ok.
func Overall(results []Result) Status {
	worst := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			worst = StatusDegraded
		}
	}
	return worst
}
