package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cfab/hwagent/internal/apperr"
	"github.com/cfab/hwagent/internal/events"
)

// RunnerConfig holds the pool sizing knobs.
type RunnerConfig struct {
	// Workers is the number of concurrent worker goroutines.
	Workers int

	// QueueSize bounds how many submitted tasks may wait for a worker.
	QueueSize int

	// DefaultTimeout applies to tasks submitted without WithTimeout.
	// Zero means no timeout.
	DefaultTimeout time.Duration
}

// Metrics is a snapshot of the runner's lifetime counters.
type Metrics struct {
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Cancelled uint64 `json:"cancelled"`
}

// SubmitOption adjusts a single submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	timeout time.Duration
	has     bool
}

// WithTimeout overrides the runner's default timeout for one task.
// Zero disables the timeout entirely.
func WithTimeout(d time.Duration) SubmitOption {
	return func(o *submitOptions) {
		o.timeout = d
		o.has = true
	}
}

// Runner executes submitted tasks on a fixed pool of workers. Every
// submission is tracked by a Handle which stays registered after the task
// finishes until the health monitor reaps it.
type Runner struct {
	cfg     RunnerConfig
	logger  *slog.Logger
	emitter events.Emitter
	queue   *Queue

	mu      sync.Mutex
	handles map[uuid.UUID]*Handle
	started bool

	active    atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewRunner creates a runner. The emitter may be nil, in which case no
// lifecycle events are published.
func NewRunner(cfg RunnerConfig, emitter events.Emitter, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "task_runner")),
		emitter: emitter,
		queue:   NewQueue(cfg.QueueSize, logger),
		handles: make(map[uuid.UUID]*Handle),
	}
}

// Start launches the worker goroutines. Calling Start twice is an error.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return apperr.New(apperr.CodeTask, "runner already started")
	}
	r.started = true
	r.baseCtx, r.baseCancel = context.WithCancel(context.Background())

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("task runner started",
		slog.Int("workers", r.cfg.Workers),
		slog.Int("queue_size", r.cfg.QueueSize))
	return nil
}

// Stop closes the queue, cancels the contexts of running tasks and waits for
// the workers to drain, up to the deadline carried by ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	r.queue.Close()
	r.baseCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		return apperr.Wrap(ctx.Err(), apperr.CodeTask, "timed out waiting for workers to stop")
	}
}

// Submit registers the task and places it on the queue. It never blocks:
// a full queue returns ErrQueueFull and the task is not registered.
func (r *Runner) Submit(t Task, opts ...SubmitOption) (*Handle, error) {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	timeout := r.cfg.DefaultTimeout
	if o.has {
		timeout = o.timeout
	}

	h := newHandle(t, timeout)
	h.onFinish = r.taskFinished

	r.mu.Lock()
	if _, exists := r.handles[t.ID()]; exists {
		r.mu.Unlock()
		return nil, apperr.New(apperr.CodeTask, fmt.Sprintf("task %s already submitted", t.ID()))
	}
	r.handles[t.ID()] = h
	r.mu.Unlock()

	if err := r.queue.Enqueue(h); err != nil {
		r.mu.Lock()
		delete(r.handles, t.ID())
		r.mu.Unlock()
		return nil, err
	}

	r.submitted.Add(1)
	r.emit(h, StatusQueued)
	r.logger.Debug("task submitted",
		slog.String("task_id", t.ID().String()),
		slog.String("task_name", t.Name()),
		slog.Duration("timeout", timeout))
	return h, nil
}

// Cancel requests cancellation of the task with the given id. Returns false
// when the task is unknown or already finished.
func (r *Runner) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	h, ok := r.handles[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return h.Cancel()
}

// Handle returns the handle for the given task id, if still registered.
func (r *Runner) Handle(id uuid.UUID) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

// Handles returns snapshots of every registered handle.
func (r *Runner) Handles() []Info {
	r.mu.Lock()
	hs := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		hs = append(hs, h)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(hs))
	for _, h := range hs {
		infos = append(infos, h.Info())
	}
	return infos
}

// ActiveCount reports how many tasks are executing right now.
func (r *Runner) ActiveCount() int { return int(r.active.Load()) }

// QueueLen reports how many tasks are waiting for a worker.
func (r *Runner) QueueLen() int { return r.queue.Len() }

// Workers reports the configured pool size.
func (r *Runner) Workers() int { return r.cfg.Workers }

// Metrics returns a snapshot of the lifetime counters.
func (r *Runner) Metrics() Metrics {
	return Metrics{
		Submitted: r.submitted.Load(),
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
		Cancelled: r.cancelled.Load(),
	}
}

// runningOlderThan returns snapshots of running tasks whose runtime exceeds d.
func (r *Runner) runningOlderThan(d time.Duration) []Info {
	r.mu.Lock()
	hs := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		hs = append(hs, h)
	}
	r.mu.Unlock()

	var out []Info
	for _, h := range hs {
		if h.Status() == StatusRunning && h.Runtime() > d {
			out = append(out, h.Info())
		}
	}
	return out
}

// reapFinished drops handles that reached a terminal state more than
// retention ago, returning how many were removed.
func (r *Runner) reapFinished(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for id, h := range r.handles {
		info := h.Info()
		if info.Status.Terminal() && !info.EndedAt.IsZero() && info.EndedAt.Before(cutoff) {
			delete(r.handles, id)
			reaped++
		}
	}
	return reaped
}

func (r *Runner) worker(n int) {
	defer r.wg.Done()
	logger := r.logger.With(slog.Int("worker", n))

	for h := range r.queue.Chan() {
		r.active.Add(1)
		logger.Debug("task starting",
			slog.String("task_id", h.ID().String()),
			slog.String("task_name", h.Name()))
		h.run(r.baseCtx)
		r.active.Add(-1)
	}
}

// taskFinished is the handle completion callback. It runs once per handle,
// on whichever goroutine drove the terminal transition.
func (r *Runner) taskFinished(h *Handle) {
	info := h.Info()
	switch info.Status {
	case StatusCompleted:
		r.completed.Add(1)
		r.logger.Debug("task completed",
			slog.String("task_id", info.ID.String()),
			slog.String("task_name", info.Name),
			slog.Duration("runtime", info.Runtime))
	case StatusFailed:
		r.failed.Add(1)
		r.logger.Warn("task failed",
			slog.String("task_id", info.ID.String()),
			slog.String("task_name", info.Name),
			slog.String("error", info.Error),
			slog.Duration("runtime", info.Runtime))
	case StatusCancelled:
		r.cancelled.Add(1)
		r.logger.Info("task cancelled",
			slog.String("task_id", info.ID.String()),
			slog.String("task_name", info.Name))
	}
	r.emit(h, info.Status)
}

func (r *Runner) emit(h *Handle, status Status) {
	if r.emitter == nil {
		return
	}
	info := h.Info()
	event := events.NewTaskEvent(info.ID, info.Name, string(status), info.Error, info.Runtime)
	if err := r.emitter.EmitEvent(context.Background(), event); err != nil {
		r.logger.Warn("failed to emit task event",
			slog.String("task_id", info.ID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
	}
}
