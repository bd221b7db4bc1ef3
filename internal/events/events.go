package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatusEvent represents a task lifecycle transition. It carries the
// fields observers need without a direct dependency on the task package.
type TaskStatusEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID is the identifier of the task that transitioned
	TaskID uuid.UUID `json:"task_id"`

	// TaskType is the type of the task that transitioned
	TaskType string `json:"task_type"`

	// Status is the status the task transitioned into
	Status string `json:"status"`

	// Progress is the task's progress at the time of the transition
	Progress float64 `json:"progress"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskStatusEvent creates a new TaskStatusEvent for the given transition.
func NewTaskStatusEvent(taskID uuid.UUID, taskType, status string, progress float64) *TaskStatusEvent {
	return &TaskStatusEvent{
		ID:        uuid.New(),
		TaskID:    taskID,
		TaskType:  taskType,
		Status:    status,
		Progress:  progress,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskStatusEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskStatusEvent) error
}
