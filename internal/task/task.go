package task

import (
	"context"

	"github.com/google/uuid"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Task represents a unit of background work to be processed
// Version: 1.0
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Name returns a human-readable task name for logs and health reports
	Name() string

	// Execute runs the task logic. Implementations should honor ctx
	// cancellation at their yield points; the runner cancels ctx on
	// timeout and cooperative cancellation.
	Execute(ctx context.Context) error
}

// funcTask adapts a plain function to the Task interface.
type funcTask struct {
	id   uuid.UUID
	name string
	fn   func(ctx context.Context) error
}

// NewFunc wraps fn as a Task with a fresh id.
func NewFunc(name string, fn func(ctx context.Context) error) Task {
	return &funcTask{id: uuid.New(), name: name, fn: fn}
}

func (t *funcTask) ID() uuid.UUID { return t.id }
func (t *funcTask) Name() string  { return t.name }

func (t *funcTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}
