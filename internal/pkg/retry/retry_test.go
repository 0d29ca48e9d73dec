package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func TestPolicy_Backoff(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, Multiplier: 2}
}

func TestDo_SucceedsAfterConflicts(t *testing.T) {
	t.Parallel()
	var waits []time.Duration
	p := fastPolicy()
	p.OnRetry = func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) }

	calls := 0
	err := Do(context.Background(), p, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestDo_Exhausted(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context, int) error {
		calls++
		return errConflict
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errConflict)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()
	fatal := errors.New("insufficient")
	p := fastPolicy()
	p.Retryable = func(err error) bool { return errors.Is(err, errConflict) }

	calls := 0
	err := Do(context.Background(), p, func(context.Context, int) error {
		calls++
		return fatal
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 2}
	p.OnRetry = func(int, error, time.Duration) { cancel() }

	err := Do(ctx, p, func(context.Context, int) error { return errConflict })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_CancelledBeforeFirstAttempt(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(), func(context.Context, int) error {
		calls++
		return nil
	})
	assert.Zero(t, calls)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrExhausted)
}
