package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// Queue is a buffered FIFO of task handles between submission and the
// worker pool. Enqueue never blocks: a full queue is an error the caller
// handles by resubmitting later.
type Queue struct {
	handles chan *Handle
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a new task queue with the specified buffer size
func NewQueue(size int, logger *slog.Logger) *Queue {
	return &Queue{
		handles: make(chan *Handle, size),
		logger:  logger,
	}
}

// Enqueue adds a handle to the queue for processing
// Returns an error if the queue is full or closed
func (q *Queue) Enqueue(h *Handle) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.handles <- h:
		q.logger.Debug("task enqueued",
			"task_id", h.ID(),
			"task_name", h.Name(),
			"queue_len", len(q.handles),
			"queue_cap", cap(q.handles))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.handles))
	}
}

// Close closes the task queue, preventing further task submission
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.handles)
		q.logger.Info("task queue closed")
	}
}

// Chan returns a read-only channel for consuming queued handles
func (q *Queue) Chan() <-chan *Handle {
	return q.handles
}

// Len returns the number of handles waiting in the queue.
func (q *Queue) Len() int {
	return len(q.handles)
}
