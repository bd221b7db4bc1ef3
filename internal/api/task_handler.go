package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/api/shared"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/platform/logger"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/task"
)

// Default and maximum page sizes for task listing.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	orchestrator *task.Orchestrator
	logger       *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(orchestrator *task.Orchestrator, logger *slog.Logger) *TaskHandler {
	if orchestrator == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("orchestrator cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		orchestrator: orchestrator,
		logger:       logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks requests.
// It persists a new pending task and dispatches its execution in the
// background; the response carries the pending record, not the outcome.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("failed to decode create task request", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	t, err := h.orchestrator.CreateTask(r.Context(), domain.TaskType(req.Type), req.Params)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// Detach from the request context so cancellation of the HTTP request does
	// not cancel the task; trace id and logger values carry over.
	execCtx := context.WithoutCancel(r.Context())
	go h.orchestrator.ExecuteTask(execCtx, t.ID)

	log.Info("task created and dispatched",
		slog.String("task_id", t.ID.String()),
		slog.String("task_type", string(t.Type)))
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(t))
}

// GetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.taskIDFromRequest(w, r)
	if !ok {
		return
	}

	t, err := h.orchestrator.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// CancelTask handles POST /tasks/{id}/cancel requests.
// Cancelling a task that already reached a terminal state returns the task
// unchanged with 200, mirroring the orchestrator's no-op semantics.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.taskIDFromRequest(w, r)
	if !ok {
		return
	}

	t, err := h.orchestrator.CancelTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			log.Debug("task not found for cancel", slog.String("task_id", id.String()))
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task cancel requested",
		slog.String("task_id", id.String()),
		slog.String("status", string(t.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// ListTasks handles GET /tasks requests with optional status filtering and
// limit/offset pagination.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var status *domain.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.TaskStatus(raw)
		if !domain.IsValidTaskStatus(s) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
			return
		}
		status = &s
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid offset parameter")
			return
		}
		offset = parsed
	}

	tasks, total, err := h.orchestrator.ListTasks(r.Context(), status, limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		responses = append(responses, taskToResponse(t))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks:  responses,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// taskIDFromRequest parses the {id} route parameter. On failure it writes a
// 400 response and returns false.
func (h *TaskHandler) taskIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}
