package task

import (
	"errors"
	"fmt"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/store"
)

// Common sentinel errors for the task lifecycle layer.
var (
	// ErrTaskNotFound indicates that the task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUnsupportedTaskType indicates the task carries a type no handler
	// is registered for.
	ErrUnsupportedTaskType = errors.New("unsupported task type")
)

// TaskError wraps errors from the task lifecycle layer with context.
type TaskError struct {
	// Operation is the operation that failed (e.g., "create_task", "cancel_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskError.
func (e *TaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError creates a new TaskError.
// Known sentinel errors are returned directly without wrapping so callers
// can match them with errors.Is.
func NewTaskError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	// Map store-level "not found" to the lifecycle-level sentinel.
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &TaskError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
