package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocker struct {
	err       error
	unlocked  atomic.Int32
	requested atomic.Int32
}

func (l *stubLocker) TryLock(context.Context, string) (func() error, error) {
	l.requested.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return func() error { l.unlocked.Add(1); return nil }, nil
}

func TestPeriodic_RunOnce(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		lockErr      error
		wantRuns     int32
		wantUnlocked int32
	}{
		{"lock acquired", nil, 1, 1},
		{"lock busy", errors.New("held elsewhere"), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			locker := &stubLocker{err: tt.lockErr}
			var runs atomic.Int32
			p := &Periodic{
				Name:     "sweeper",
				Interval: time.Second,
				Locker:   locker,
				Task: func(context.Context) error {
					runs.Add(1)
					return errors.New("task errors are only logged")
				},
			}
			p.RunOnce(context.Background())
			assert.Equal(t, tt.wantRuns, runs.Load())
			assert.Equal(t, tt.wantUnlocked, locker.unlocked.Load())
			assert.EqualValues(t, 1, locker.requested.Load())
		})
	}
}

func TestPeriodic_RunStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	p := &Periodic{
		Name:     "ticker",
		Interval: 5 * time.Millisecond,
		Task: func(context.Context) error {
			if runs.Add(1) == 3 {
				cancel()
			}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}
