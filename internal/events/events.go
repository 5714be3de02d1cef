// Package events carries task lifecycle notifications between the runner
// and interested components without direct dependencies on the task package.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskEvent describes a task lifecycle transition.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task the event concerns
	TaskID uuid.UUID `json:"task_id"`

	// TaskName is the task's human-readable name
	TaskName string `json:"task_name"`

	// Status is the task status after the transition
	Status string `json:"status"`

	// Error holds the failure message for failed tasks, empty otherwise
	Error string `json:"error,omitempty"`

	// Duration is how long the task ran, zero if it never started
	Duration time.Duration `json:"duration"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent creates a TaskEvent for the given task transition.
func NewTaskEvent(taskID uuid.UUID, name, status, errMsg string, duration time.Duration) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		TaskID:     taskID,
		TaskName:   name,
		Status:     status,
		Error:      errMsg,
		Duration:   duration,
		OccurredAt: time.Now(),
	}
}

// Handler defines an interface for components that can handle events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// Emitter defines an interface for components that can emit events.
// This allows the runner to publish events without direct knowledge of
// handlers.
type Emitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}
