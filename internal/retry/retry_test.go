package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

func fast(attempts int) Policy {
	return Policy{Attempts: attempts, Backoff: time.Millisecond, Ceiling: 5 * time.Millisecond}
}

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	n, err := Do(context.Background(), Network(3), func(context.Context) error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDo_TimeoutThenSuccess(t *testing.T) {
	calls := 0
	var retried []int
	p := fast(3)
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	n, err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("git push: %w", perrors.ErrTimeout)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	for _, err := range []error{perrors.ErrExecutableNotFound, errors.New("rejected")} {
		n, got := Do(context.Background(), fast(3), func(context.Context) error { return err })
		assert.ErrorIs(t, got, err)
		assert.Equal(t, 1, n)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := fast(2)
	p.Jitter = true
	n, err := Do(context.Background(), p, func(context.Context) error { return perrors.ErrTimeout })
	assert.ErrorIs(t, err, perrors.ErrTimeout)
	assert.Equal(t, 2, n)
}

func TestDo_AtLeastOneAttempt(t *testing.T) {
	for _, attempts := range []int{-1, 0, 1} {
		n, err := Do(context.Background(), Policy{Attempts: attempts}, func(context.Context) error {
			return perrors.ErrTimeout
		})
		assert.ErrorIs(t, err, perrors.ErrTimeout)
		assert.Equal(t, 1, n)
	}
}

func TestDo_CustomClassifier(t *testing.T) {
	flaky := errors.New("connection reset")
	p := fast(3)
	p.Retryable = func(err error) bool { return errors.Is(err, flaky) }

	n, err := Do(context.Background(), p, func(context.Context) error { return flaky })
	assert.ErrorIs(t, err, flaky)
	assert.Equal(t, 3, n)

	n, _ = Do(context.Background(), p, func(context.Context) error { return perrors.ErrTimeout })
	assert.Equal(t, 1, n)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{Attempts: 3, Backoff: time.Second}
	n, err := Do(ctx, p, func(context.Context) error { return perrors.ErrTimeout })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}

func TestWait(t *testing.T) {
	p := Policy{Backoff: 100 * time.Millisecond, Ceiling: time.Second}
	assert.Equal(t, 100*time.Millisecond, p.Wait(1))
	assert.Equal(t, 200*time.Millisecond, p.Wait(2))
	assert.Equal(t, 800*time.Millisecond, p.Wait(4))
	assert.Equal(t, time.Second, p.Wait(5))
	assert.Equal(t, time.Second, p.Wait(40))

	unbounded := Policy{Backoff: time.Millisecond}
	assert.Equal(t, 8*time.Millisecond, unbounded.Wait(4))
}
