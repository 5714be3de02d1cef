package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRunCompletes(t *testing.T) {
	t.Parallel()

	ran := false
	h := newHandle(NewFunc("ok", func(ctx context.Context) error {
		ran = true
		return nil
	}), 0)

	h.run(context.Background())

	assert.True(t, ran)
	assert.Equal(t, StatusCompleted, h.Status())
	assert.NoError(t, h.Err())
	assert.False(t, h.Info().EndedAt.IsZero())
}

func TestHandleRunRecordsFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	h := newHandle(NewFunc("fails", func(ctx context.Context) error {
		return boom
	}), 0)

	h.run(context.Background())

	assert.Equal(t, StatusFailed, h.Status())
	assert.ErrorIs(t, h.Err(), boom)
	assert.Equal(t, "boom", h.Info().Error)
}

func TestHandleRunRecoversPanic(t *testing.T) {
	t.Parallel()

	h := newHandle(NewFunc("panics", func(ctx context.Context) error {
		panic("kaboom")
	}), 0)

	require.NotPanics(t, func() { h.run(context.Background()) })

	assert.Equal(t, StatusFailed, h.Status())
	assert.Contains(t, h.Info().Error, "kaboom")
}

func TestHandleTimeoutFailsTask(t *testing.T) {
	t.Parallel()

	h := newHandle(NewFunc("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}), 20*time.Millisecond)

	start := time.Now()
	h.run(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusFailed, h.Status())
	assert.ErrorIs(t, h.Err(), ErrTimeout)
}

func TestHandleCancelBeforeStart(t *testing.T) {
	t.Parallel()

	ran := false
	h := newHandle(NewFunc("never", func(ctx context.Context) error {
		ran = true
		return nil
	}), 0)

	require.True(t, h.Cancel())
	assert.Equal(t, StatusCancelled, h.Status())

	// A worker dequeuing the cancelled handle must not execute it.
	h.run(context.Background())
	assert.False(t, ran)
	assert.Equal(t, StatusCancelled, h.Status())
	assert.ErrorIs(t, h.Err(), ErrCancelled)
}

func TestHandleCancelWhileRunning(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	h := newHandle(NewFunc("cooperative", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}), 0)

	done := make(chan struct{})
	go func() {
		h.run(context.Background())
		close(done)
	}()

	<-started
	require.True(t, h.Cancel())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled task did not finish")
	}
	assert.Equal(t, StatusCancelled, h.Status())
}

func TestHandleCancelWhileRunningWithTimeout(t *testing.T) {
	t.Parallel()

	// With a timeout configured, exactly one context backs the run and
	// Cancel must release it; the callable sees cancellation well before
	// the deadline.
	started := make(chan struct{})
	h := newHandle(NewFunc("timed", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}), time.Hour)

	done := make(chan struct{})
	go func() {
		h.run(context.Background())
		close(done)
	}()

	<-started
	require.True(t, h.Cancel())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not reach the running callable")
	}
	assert.Equal(t, StatusCancelled, h.Status())
	assert.ErrorIs(t, h.Err(), ErrCancelled)
}

func TestHandleCancelAfterFinishIsNoop(t *testing.T) {
	t.Parallel()

	h := newHandle(noopTask("done"), 0)
	h.run(context.Background())

	assert.False(t, h.Cancel())
	assert.Equal(t, StatusCompleted, h.Status())
}

func TestHandleFinishIsTerminal(t *testing.T) {
	t.Parallel()

	h := newHandle(noopTask("once"), 0)
	h.run(context.Background())
	require.Equal(t, StatusCompleted, h.Status())

	// A late finish must not overwrite the terminal state.
	h.finish(errors.New("late"))
	assert.Equal(t, StatusCompleted, h.Status())
	assert.NoError(t, h.Err())
}
