// Package retry re-runs operations that failed transiently, such as git
// network commands that hit their deadline.
package retry

import (
	"context"
	"math/rand"
	"time"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

// Policy describes how an operation is retried.
type Policy struct {
	Attempts int           // total attempts; values below 1 mean one
	Backoff  time.Duration // wait after the first failure, doubled per attempt
	Ceiling  time.Duration // upper bound on a single wait; 0 is unbounded
	Jitter   bool

	// Retryable classifies errors. Nil means perrors.IsRetryable.
	Retryable func(error) bool
	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// Network is the policy for push and pull.
func Network(attempts int) Policy {
	return Policy{
		Attempts: attempts,
		Backoff:  500 * time.Millisecond,
		Ceiling:  10 * time.Second,
		Jitter:   true,
	}
}

// Wait returns the delay before attempt n+1, given that attempt n (1-based)
// failed. Jitter is not applied.
func (p Policy) Wait(n int) time.Duration {
	d := p.Backoff
	for i := 1; i < n; i++ {
		d *= 2
		if p.Ceiling > 0 && d >= p.Ceiling {
			return p.Ceiling
		}
	}
	if p.Ceiling > 0 && d > p.Ceiling {
		return p.Ceiling
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx ends. It returns the number of attempts made and the last
// error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	limit := max(p.Attempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = perrors.IsRetryable
	}

	for n := 1; ; n++ {
		err := fn(ctx)
		if err == nil || n == limit || !retryable(err) {
			return n, err
		}
		if p.OnRetry != nil {
			p.OnRetry(n, err)
		}

		wait := p.Wait(n)
		if p.Jitter {
			wait = wait/2 + time.Duration(rand.Int63n(int64(wait/2)+1))
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return n, ctx.Err()
		case <-t.C:
		}
	}
}
