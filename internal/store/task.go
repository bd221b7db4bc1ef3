package store

import (
	"context"
	"time"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
	"github.com/google/uuid"
)

// TaskUpdate carries a partial set of mutable task fields. Nil pointers mean
// "leave this column untouched". Every applied update stamps updated_at.
type TaskUpdate struct {
	Status   *domain.TaskStatus
	Stage    *domain.TaskStage
	Progress *float64
	Message  *string
	Result   map[string]any
	Error    *string

	EstimatedTimeRemaining *float64
	Quality                *float64
	Iterations             *int
	CanProceed             *bool
}

// TaskStore defines the persistence contract the task lifecycle layer
// consumes. Implementations must be safe for concurrent use; no guarantees
// beyond per-row atomicity are assumed, and concurrent updates to the same
// id are last-write-wins.
type TaskStore interface {
	// Create persists a new task record.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update applies a partial update to the task with the given ID and
	// returns the updated record. Returns ErrTaskNotFound if the task does
	// not exist.
	Update(ctx context.Context, id uuid.UUID, update TaskUpdate) (*domain.Task, error)

	// List returns tasks ordered by created_at descending, optionally
	// filtered by status. A nil status means no filter.
	List(ctx context.Context, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, error)

	// Count returns the number of tasks, optionally filtered by status.
	Count(ctx context.Context, status *domain.TaskStatus) (int64, error)

	// DeleteExpired removes every task whose expires_at is strictly before
	// the cutoff and returns the number of rows deleted.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
