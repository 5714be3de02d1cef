package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Errors recorded on handles that did not run to completion.
var (
	ErrTimeout   = errors.New("task timed out")
	ErrCancelled = errors.New("task cancelled")
)

// Info is a point-in-time, JSON-serializable view of a handle.
type Info struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Runtime     time.Duration `json:"runtime"`
	Error       string        `json:"error,omitempty"`
}

// Handle wraps a submitted task with status tracking, a per-task timeout,
// and cooperative cancellation. The runner owns the handle for the task's
// lifetime; callers hold it to observe or cancel.
type Handle struct {
	task    Task
	timeout time.Duration

	mu              sync.Mutex
	status          Status
	submittedAt     time.Time
	startedAt       time.Time
	endedAt         time.Time
	err             error
	cancelRequested bool
	cancelRun       context.CancelFunc
	onFinish        func(*Handle)
}

func newHandle(t Task, timeout time.Duration) *Handle {
	return &Handle{
		task:        t,
		timeout:     timeout,
		status:      StatusQueued,
		submittedAt: time.Now(),
	}
}

// ID returns the wrapped task's identifier.
func (h *Handle) ID() uuid.UUID { return h.task.ID() }

// Name returns the wrapped task's name.
func (h *Handle) Name() string { return h.task.Name() }

// Status returns the handle's current status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Err returns the recorded failure, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Info returns a snapshot of the handle.
func (h *Handle) Info() Info {
	h.mu.Lock()
	defer h.mu.Unlock()

	info := Info{
		ID:          h.task.ID(),
		Name:        h.task.Name(),
		Status:      h.status,
		SubmittedAt: h.submittedAt,
		StartedAt:   h.startedAt,
		EndedAt:     h.endedAt,
		Runtime:     h.runtimeLocked(),
	}
	if h.err != nil {
		info.Error = h.err.Error()
	}
	return info
}

// Runtime returns how long the task has been or was running. Zero for tasks
// that never started.
func (h *Handle) Runtime() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runtimeLocked()
}

func (h *Handle) runtimeLocked() time.Duration {
	switch {
	case h.startedAt.IsZero():
		return 0
	case h.endedAt.IsZero():
		return time.Since(h.startedAt)
	default:
		return h.endedAt.Sub(h.startedAt)
	}
}

// Cancel requests cancellation. A queued task is cancelled immediately and
// its callable will never run. A running task has its context cancelled;
// actually stopping is up to the callable (cancellation is cooperative, the
// goroutine is not preempted). Cancelling a finished task is a no-op.
// Returns true if the request took effect.
func (h *Handle) Cancel() bool {
	h.mu.Lock()

	if h.status.Terminal() {
		h.mu.Unlock()
		return false
	}

	h.cancelRequested = true

	if h.status == StatusQueued {
		// Transition under the lock so a worker dequeuing this handle
		// cannot start it concurrently.
		h.status = StatusCancelled
		h.err = ErrCancelled
		h.endedAt = time.Now()
		cb := h.onFinish
		h.mu.Unlock()
		if cb != nil {
			cb(h)
		}
		return true
	}

	cancel := h.cancelRun
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// run executes the wrapped task on the calling goroutine, racing the
// callable against the timeout and the cancellation context. On timeout the
// handle fails with ErrTimeout while the callable's goroutine may keep
// running; there is no safe way to kill it, so this leak is accepted for
// genuinely stuck callables.
func (h *Handle) run(parent context.Context) {
	h.mu.Lock()
	if h.status != StatusQueued {
		// Cancelled while waiting in the queue.
		h.mu.Unlock()
		return
	}
	h.status = StatusRunning
	h.startedAt = time.Now()

	var ctx context.Context
	var cancel context.CancelFunc
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, h.timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	h.cancelRun = cancel
	h.mu.Unlock()
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var execErr error
		defer func() {
			if r := recover(); r != nil {
				execErr = fmt.Errorf("task panicked: %v", r)
			}
			done <- execErr
		}()
		execErr = h.task.Execute(ctx)
	}()

	select {
	case execErr := <-done:
		h.finish(execErr)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.finish(fmt.Errorf("%w after %s", ErrTimeout, h.timeout))
		} else {
			h.finish(ctx.Err())
		}
	}
}

// finish records the terminal status exactly once and fires the runner's
// completion callback.
func (h *Handle) finish(execErr error) {
	h.mu.Lock()
	if h.status.Terminal() {
		h.mu.Unlock()
		return
	}

	h.endedAt = time.Now()
	switch {
	case errors.Is(execErr, context.Canceled):
		h.status = StatusCancelled
		h.err = ErrCancelled
	case execErr != nil:
		h.status = StatusFailed
		h.err = execErr
	default:
		h.status = StatusCompleted
	}

	cb := h.onFinish
	h.mu.Unlock()

	if cb != nil {
		cb(h)
	}
}
