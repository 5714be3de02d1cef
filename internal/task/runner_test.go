package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfab/hwagent/internal/apperr"
	"github.com/cfab/hwagent/internal/events"
)

func newTestRunner(t *testing.T, cfg RunnerConfig) *Runner {
	t.Helper()
	r := NewRunner(cfg, nil, testLogger())
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})
	return r
}

func waitStatus(t *testing.T, h *Handle, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.Status() == want
	}, 2*time.Second, 5*time.Millisecond, "task never reached %s, got %s", want, h.Status())
}

func TestRunnerExecutesSubmittedTask(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 2, QueueSize: 4})

	var ran sync.WaitGroup
	ran.Add(1)
	h, err := r.Submit(NewFunc("work", func(ctx context.Context) error {
		ran.Done()
		return nil
	}))
	require.NoError(t, err)

	ran.Wait()
	waitStatus(t, h, StatusCompleted)
	assert.Equal(t, uint64(1), r.Metrics().Completed)
}

func TestRunnerFailedTaskDoesNotKillPool(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 4})

	bad, err := r.Submit(NewFunc("bad", func(ctx context.Context) error {
		return errors.New("broken")
	}))
	require.NoError(t, err)
	waitStatus(t, bad, StatusFailed)

	// The same worker must still pick up later tasks.
	good, err := r.Submit(noopTask("good"))
	require.NoError(t, err)
	waitStatus(t, good, StatusCompleted)

	m := r.Metrics()
	assert.Equal(t, uint64(1), m.Failed)
	assert.Equal(t, uint64(1), m.Completed)
}

func TestRunnerPanickingTaskDoesNotKillPool(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 4})

	bad, err := r.Submit(NewFunc("panics", func(ctx context.Context) error {
		panic("boom")
	}))
	require.NoError(t, err)
	waitStatus(t, bad, StatusFailed)

	good, err := r.Submit(noopTask("survivor"))
	require.NoError(t, err)
	waitStatus(t, good, StatusCompleted)
}

func TestRunnerQueueFull(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 1})

	release := make(chan struct{})
	blocker := func(ctx context.Context) error {
		<-release
		return nil
	}
	defer close(release)

	// Occupy the worker, then fill the single queue slot.
	first, err := r.Submit(NewFunc("blocker", blocker))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return first.Status() == StatusRunning
	}, 2*time.Second, 5*time.Millisecond)
	_, err = r.Submit(NewFunc("queued", blocker))
	require.NoError(t, err)

	overflow, err := r.Submit(noopTask("overflow"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Nil(t, overflow)

	// A rejected task must not stay registered.
	assert.Equal(t, uint64(2), r.Metrics().Submitted)
}

func TestRunnerCancelQueuedTask(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 4})

	release := make(chan struct{})
	defer close(release)
	first, err := r.Submit(NewFunc("blocker", func(ctx context.Context) error {
		<-release
		return nil
	}))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return first.Status() == StatusRunning
	}, 2*time.Second, 5*time.Millisecond)

	ran := false
	queued, err := r.Submit(NewFunc("doomed", func(ctx context.Context) error {
		ran = true
		return nil
	}))
	require.NoError(t, err)

	require.True(t, r.Cancel(queued.ID()))
	assert.Equal(t, StatusCancelled, queued.Status())
	assert.Equal(t, uint64(1), r.Metrics().Cancelled)
	assert.False(t, ran)
}

func TestRunnerCancelUnknownTask(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 1})
	assert.False(t, r.Cancel(noopTask("elsewhere").ID()))
}

func TestRunnerPerTaskTimeout(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 4, DefaultTimeout: time.Hour})

	h, err := r.Submit(NewFunc("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	waitStatus(t, h, StatusFailed)
	assert.ErrorIs(t, h.Err(), ErrTimeout)
	assert.Equal(t, uint64(1), r.Metrics().Failed)
}

func TestRunnerDuplicateSubmit(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 4})

	release := make(chan struct{})
	defer close(release)
	task := NewFunc("dup", func(ctx context.Context) error {
		<-release
		return nil
	})

	_, err := r.Submit(task)
	require.NoError(t, err)

	_, err = r.Submit(task)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTask, apperr.CodeOf(err))
}

func TestRunnerEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()

	emitter := events.NewInMemoryEmitter(testLogger())
	var mu sync.Mutex
	var statuses []string
	emitter.RegisterHandler(events.HandlerFunc(func(ctx context.Context, e *events.TaskEvent) error {
		mu.Lock()
		statuses = append(statuses, e.Status)
		mu.Unlock()
		return nil
	}))

	r := NewRunner(RunnerConfig{Workers: 1, QueueSize: 4}, emitter, testLogger())
	require.NoError(t, r.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	}()

	h, err := r.Submit(noopTask("observed"))
	require.NoError(t, err)
	waitStatus(t, h, StatusCompleted)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{string(StatusQueued), string(StatusCompleted)}, statuses)
}

func TestRunnerStopCancelsRunningTasks(t *testing.T) {
	t.Parallel()

	r := NewRunner(RunnerConfig{Workers: 1, QueueSize: 4}, nil, testLogger())
	require.NoError(t, r.Start())

	h, err := r.Submit(NewFunc("long", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, err)
	waitStatus(t, h, StatusRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, StatusCancelled, h.Status())
}

func TestRunnerHandleLookup(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 4})

	h, err := r.Submit(noopTask("lookup"))
	require.NoError(t, err)
	waitStatus(t, h, StatusCompleted)

	// Finished handles stay visible until reaped.
	got, ok := r.Handle(h.ID())
	require.True(t, ok)
	assert.Same(t, h, got)

	_, ok = r.Handle(noopTask("other").ID())
	assert.False(t, ok)
}
