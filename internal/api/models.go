package api

import (
	"time"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
)

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Type   string         `json:"type"   validate:"required,oneof=document_processing report_generation report_refinement report_export"`
	Params map[string]any `json:"params"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID                     string         `json:"id"`
	Type                   string         `json:"type"`
	Status                 string         `json:"status"`
	Stage                  string         `json:"stage"`
	Progress               float64        `json:"progress"`
	Message                string         `json:"message"`
	Result                 map[string]any `json:"result,omitempty"`
	Error                  string         `json:"error,omitempty"`
	EstimatedTimeRemaining *float64       `json:"estimated_time_remaining,omitempty"`
	Quality                *float64       `json:"quality,omitempty"`
	Iterations             *int           `json:"iterations,omitempty"`
	CanProceed             *bool          `json:"can_proceed,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	ExpiresAt              time.Time      `json:"expires_at"`
}

// TaskListResponse represents a paginated list of tasks.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// taskToResponse converts a domain task to its API representation.
func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:                     t.ID.String(),
		Type:                   string(t.Type),
		Status:                 string(t.Status),
		Stage:                  string(t.Stage),
		Progress:               t.Progress,
		Message:                t.Message,
		Result:                 t.Result,
		Error:                  t.Error,
		EstimatedTimeRemaining: t.EstimatedTimeRemaining,
		Quality:                t.Quality,
		Iterations:             t.Iterations,
		CanProceed:             t.CanProceed,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
		ExpiresAt:              t.ExpiresAt,
	}
}
