// Package logqueue decouples log producers from the write path. Records are
// handed to a bounded queue drained by a single consumer goroutine; when the
// queue is full the newest record is dropped and counted rather than
// blocking the producer.
package logqueue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Health describes the consumer's progress.
type Health string

const (
	// Healthy means the consumer is keeping up or the queue is empty.
	Healthy Health = "healthy"

	// Blocked means entries are pending but the consumer has not made
	// progress within the configured threshold.
	Blocked Health = "blocked"
)

// Snapshot is a point-in-time view of the queue, serializable for the
// status API.
type Snapshot struct {
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
	Health    Health `json:"health"`
}

type entry struct {
	handler slog.Handler
	record  slog.Record
}

// Queue owns the consumer goroutine and the bounded channel. Producers reach
// it through Handler values obtained from Handler().
type Queue struct {
	entries      chan entry
	blockedAfter time.Duration

	mu     sync.RWMutex
	closed bool

	processed atomic.Uint64
	dropped   atomic.Uint64
	errs      atomic.Uint64
	progress  atomic.Int64 // unix nanos of last consumer activity

	done chan struct{}
}

// New creates a queue with the given capacity and starts its consumer.
// blockedAfter controls when a stalled consumer is reported Blocked.
func New(capacity int, blockedAfter time.Duration) *Queue {
	q := &Queue{
		entries:      make(chan entry, capacity),
		blockedAfter: blockedAfter,
		done:         make(chan struct{}),
	}
	q.progress.Store(time.Now().UnixNano())
	go q.consume()
	return q
}

// Handler wraps inner so records logged through it are delivered via the
// queue. Enabled, WithAttrs, and WithGroup delegate to inner.
func (q *Queue) Handler(inner slog.Handler) slog.Handler {
	return &handler{queue: q, inner: inner}
}

// Stop closes the queue. Pending entries are drained before the consumer
// exits; records offered after Stop are silently discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.entries)
	q.mu.Unlock()

	<-q.done
}

// Snapshot returns current queue statistics and health.
func (q *Queue) Snapshot() Snapshot {
	return Snapshot{
		Queued:    len(q.entries),
		Capacity:  cap(q.entries),
		Processed: q.processed.Load(),
		Dropped:   q.dropped.Load(),
		Errors:    q.errs.Load(),
		Health:    q.health(),
	}
}

func (q *Queue) health() Health {
	if len(q.entries) == 0 {
		return Healthy
	}
	idle := time.Since(time.Unix(0, q.progress.Load()))
	if idle > q.blockedAfter {
		return Blocked
	}
	return Healthy
}

// offer enqueues without blocking. A full queue sheds the record.
func (q *Queue) offer(e entry) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return
	}

	select {
	case q.entries <- e:
	default:
		q.dropped.Add(1)
	}
}

func (q *Queue) consume() {
	defer close(q.done)

	for e := range q.entries {
		if err := e.handler.Handle(context.Background(), e.record); err != nil {
			q.errs.Add(1)
		} else {
			q.processed.Add(1)
		}
		q.progress.Store(time.Now().UnixNano())
	}
}

// handler is the slog.Handler facade over a Queue. Derived handlers from
// WithAttrs/WithGroup share the queue but carry their own inner handler.
type handler struct {
	queue *Queue
	inner slog.Handler
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	h.queue.offer(entry{handler: h.inner, record: r.Clone()})
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{queue: h.queue, inner: h.inner.WithAttrs(attrs)}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{queue: h.queue, inner: h.inner.WithGroup(name)}
}
