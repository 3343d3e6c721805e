package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, cfg QueueConfig) *WriteQueue {
	t.Helper()
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Millisecond
	}
	q := NewWriteQueue(cfg, zerolog.Nop())
	t.Cleanup(q.Stop)
	return q
}

func TestDoReturnsJobError(t *testing.T) {
	q := newTestQueue(t, QueueConfig{})

	want := errors.New("disk full")
	err := q.Do(context.Background(), "agent-1", func(context.Context) error { return want })
	require.ErrorIs(t, err, want)

	err = q.Do(context.Background(), "agent-1", func(context.Context) error { return nil })
	require.NoError(t, err)
}

func TestJobsForOneKeyRunInOrder(t *testing.T) {
	q := newTestQueue(t, QueueConfig{Shards: 4})

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		err := q.Submit(context.Background(), "agent-1", func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, q.Barrier(context.Background(), "agent-1"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		require.Equal(t, i, v, "job order broken at index %d", i)
	}
}

func TestSubmitRetriesUntilSuccess(t *testing.T) {
	q := newTestQueue(t, QueueConfig{MaxAttempts: 5})

	var mu sync.Mutex
	attempts := 0
	err := q.Submit(context.Background(), "prefs", func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, q.Barrier(context.Background(), "prefs"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, attempts)
}

func TestSubmitGivesUpAfterMaxAttempts(t *testing.T) {
	q := newTestQueue(t, QueueConfig{MaxAttempts: 3})

	var mu sync.Mutex
	attempts := 0
	err := q.Submit(context.Background(), "prefs", func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("permanent")
	})
	require.NoError(t, err)
	require.NoError(t, q.Barrier(context.Background(), "prefs"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, attempts)
}

func TestDoAfterStopReturnsClosed(t *testing.T) {
	q := NewWriteQueue(QueueConfig{}, zerolog.Nop())
	q.Stop()

	err := q.Do(context.Background(), "agent-1", func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrQueueClosed)

	err = q.Submit(context.Background(), "agent-1", func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestStopDrainsPendingJobs(t *testing.T) {
	q := NewWriteQueue(QueueConfig{Shards: 1, QueueSize: 16}, zerolog.Nop())

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		err := q.Submit(context.Background(), "agent-1", func(context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 10, ran)
}

func TestBarrierWaitsForPriorJobs(t *testing.T) {
	q := newTestQueue(t, QueueConfig{})

	done := false
	err := q.Submit(context.Background(), "agent-1", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		done = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Barrier(context.Background(), "agent-1"))
	require.True(t, done, "barrier returned before prior job finished")
}

func TestDoWithCancelledContext(t *testing.T) {
	q := newTestQueue(t, QueueConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Do(ctx, "agent-1", func(context.Context) error {
		t.Error("job ran despite cancelled context")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
