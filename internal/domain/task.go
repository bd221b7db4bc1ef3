package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskRetention is how long a task record is kept before it becomes
// eligible for the expiry sweep.
const TaskRetention = 30 * 24 * time.Hour

// TaskType identifies the kind of work a task performs.
type TaskType string

// Possible task type values. The set is closed: handler dispatch switches
// exhaustively over these four values.
const (
	TaskTypeDocumentProcessing TaskType = "document_processing"
	TaskTypeReportGeneration   TaskType = "report_generation"
	TaskTypeReportRefinement   TaskType = "report_refinement"
	TaskTypeReportExport       TaskType = "report_export"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskStage describes where in the generation pipeline a task currently is.
// It is advisory and independent of status.
type TaskStage string

// Possible task stage values
const (
	TaskStageIdle         TaskStage = "idle"
	TaskStageUpload       TaskStage = "upload"
	TaskStageExtraction   TaskStage = "extraction"
	TaskStageAnalysis     TaskStage = "analysis"
	TaskStageWriter       TaskStage = "writer"
	TaskStageReviewer     TaskStage = "reviewer"
	TaskStageRefinement   TaskStage = "refinement"
	TaskStageFormatting   TaskStage = "formatting"
	TaskStageFinalization TaskStage = "finalization"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrInvalidTaskType  = errors.New("invalid task type")
	ErrInvalidTaskStage = errors.New("invalid task stage")
	ErrInvalidProgress  = errors.New("task progress must be between 0 and 100")
)

// Task represents one trackable unit of long-running work with persisted
// state. ID and Type are immutable after creation; Status only moves forward
// through the state machine (pending -> in_progress -> completed/failed/
// cancelled).
type Task struct {
	ID       uuid.UUID  `json:"id"`
	Type     TaskType   `json:"type"`
	Status   TaskStatus `json:"status"`
	Stage    TaskStage  `json:"stage"`
	Progress float64    `json:"progress"`
	Message  string     `json:"message"`

	// Params is the opaque payload supplied at creation and passed verbatim
	// to the stage handler. The lifecycle layer never interprets it.
	Params map[string]any `json:"params,omitempty"`

	// Result is nil until the task completes.
	Result map[string]any `json:"result,omitempty"`

	// Error is set only when Status is failed.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Auxiliary fields populated by some handlers only.
	EstimatedTimeRemaining *float64 `json:"estimated_time_remaining,omitempty"`
	Quality                *float64 `json:"quality,omitempty"`
	Iterations             *int     `json:"iterations,omitempty"`
	CanProceed             *bool    `json:"can_proceed,omitempty"`
}

// NewTask creates a new Task of the given type with the supplied opaque
// params. It generates the ID, starts the task in pending/idle with zero
// progress, and sets the expiry to creation time plus the retention window.
// Returns an error if validation fails.
func NewTask(taskType TaskType, params map[string]any) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Type:      taskType,
		Status:    TaskStatusPending,
		Stage:     TaskStageIdle,
		Progress:  0,
		Message:   "Task created",
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(TaskRetention),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if !IsValidTaskType(t.Type) {
		return ErrInvalidTaskType
	}

	if !IsValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !isValidTaskStage(t.Stage) {
		return ErrInvalidTaskStage
	}

	if t.Progress < 0 || t.Progress > 100 {
		return ErrInvalidProgress
	}

	return nil
}

// IsTerminal reports whether the task is in a state that admits no further
// transition.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsCancellable reports whether the task may still be cancelled.
// Only pending and in_progress tasks are cancellable.
func (t *Task) IsCancellable() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}

// InitialStage returns the pipeline stage a task of the given type enters
// when execution begins.
func InitialStage(taskType TaskType) TaskStage {
	switch taskType {
	case TaskTypeDocumentProcessing:
		return TaskStageExtraction
	case TaskTypeReportGeneration:
		return TaskStageAnalysis
	case TaskTypeReportRefinement:
		return TaskStageAnalysis
	case TaskTypeReportExport:
		return TaskStageFormatting
	default:
		return TaskStageIdle
	}
}

// IsValidTaskType checks if the given type is one of the closed task type set.
func IsValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeDocumentProcessing, TaskTypeReportGeneration,
		TaskTypeReportRefinement, TaskTypeReportExport:
		return true
	default:
		return false
	}
}

// IsValidTaskStatus checks if the given status is a valid TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidTaskStage checks if the given stage is a valid TaskStage.
func isValidTaskStage(stage TaskStage) bool {
	switch stage {
	case TaskStageIdle, TaskStageUpload, TaskStageExtraction,
		TaskStageAnalysis, TaskStageWriter, TaskStageReviewer,
		TaskStageRefinement, TaskStageFormatting, TaskStageFinalization:
		return true
	default:
		return false
	}
}
