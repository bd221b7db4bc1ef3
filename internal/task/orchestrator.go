package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/events"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/store"
	"github.com/google/uuid"
)

// CancelledMessage is the fixed status message persisted when a task is
// cancelled.
const CancelledMessage = "Task cancelled by user"

// OrchestratorConfig holds configuration for the task orchestrator.
type OrchestratorConfig struct {
	// StepDelay is the simulated duration of one slice of stage work.
	// Tests shrink it to keep handler runs fast.
	StepDelay time.Duration

	// Drafter, when set, produces report prose during the writer stage of
	// report generation. When nil the stage fabricates a draft.
	Drafter Drafter

	// Emitter, when set, receives a status event on every lifecycle
	// transition. Emission is best-effort; handler errors never affect the
	// transition itself.
	Emitter events.EventEmitter
}

// DefaultOrchestratorConfig returns an OrchestratorConfig with reasonable defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		StepDelay: 500 * time.Millisecond,
	}
}

// Orchestrator is the façade over the task lifecycle: it creates records,
// executes tasks, persists progress, transitions state on completion,
// failure and cancellation, and mediates between the Registry and the
// record store.
type Orchestrator struct {
	store    store.TaskStore
	registry *Registry
	config   OrchestratorConfig
	logger   *slog.Logger
}

// NewOrchestrator creates a new Orchestrator backed by the given store.
// If logger is nil, the process default logger is used.
func NewOrchestrator(
	taskStore store.TaskStore,
	config OrchestratorConfig,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if taskStore == nil {
		return nil, &TaskError{
			Operation: "create_orchestrator",
			Message:   "task store cannot be nil",
		}
	}
	if config.StepDelay <= 0 {
		config.StepDelay = DefaultOrchestratorConfig().StepDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:    taskStore,
		registry: NewRegistry(),
		config:   config,
		logger:   logger.With("component", "task_orchestrator"),
	}, nil
}

// Registry exposes the process-local registry of running tasks.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// CreateTask persists a new task of the given type in pending state and
// returns it. Params are opaque and stored verbatim; they are never
// interpreted here. Fails with a TaskError if the type is invalid or the
// store rejects the write.
func (o *Orchestrator) CreateTask(
	ctx context.Context,
	taskType domain.TaskType,
	params map[string]any,
) (*domain.Task, error) {
	t, err := domain.NewTask(taskType, params)
	if err != nil {
		o.logger.Warn("failed to construct task",
			"task_type", taskType,
			"error", err)
		return nil, NewTaskError("create_task", "failed to construct task", err)
	}

	if err := o.store.Create(ctx, t); err != nil {
		o.logger.Error("failed to persist new task",
			"task_id", t.ID,
			"task_type", taskType,
			"error", err)
		return nil, NewTaskError("create_task", "failed to save task", err)
	}

	o.logger.Info("task created",
		"task_id", t.ID,
		"task_type", taskType)
	o.notify(ctx, t.ID, t.Type, t.Status, t.Progress)
	return t, nil
}

// GetTask retrieves a task by its ID.
// Returns ErrTaskNotFound if the task does not exist.
func (o *Orchestrator) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := o.store.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, NewTaskError("get_task", "failed to retrieve task", err)
	}
	return t, nil
}

// UpdateTask applies a partial update to the task and returns the updated
// record, stamping updated_at. Progress values outside [0, 100] are clamped.
// Returns ErrTaskNotFound if the task does not exist.
func (o *Orchestrator) UpdateTask(
	ctx context.Context,
	id uuid.UUID,
	update store.TaskUpdate,
) (*domain.Task, error) {
	if update.Progress != nil {
		clamped := clampProgress(*update.Progress)
		update.Progress = &clamped
	}

	t, err := o.store.Update(ctx, id, update)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, NewTaskError("update_task", "failed to update task", err)
	}
	return t, nil
}

// ExecuteTask runs the unit of work for the given task to a terminal state.
// It is designed for fire-and-forget dispatch: all outcomes, including
// failures, are captured into the task record rather than returned, and a
// missing task is a silent no-op. Callers observe results by polling
// GetTask.
//
// The task's registry entry is removed unconditionally when execution
// terminates, whatever the exit path.
func (o *Orchestrator) ExecuteTask(ctx context.Context, id uuid.UUID) {
	log := o.logger.With("task_id", id)

	t, err := o.store.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Warn("execute requested for missing task")
		} else {
			log.Error("failed to load task for execution", "error", err)
		}
		return
	}
	log = log.With("task_type", t.Type)

	// Only pending tasks are dispatched. Anything else either already ran
	// or was cancelled before dispatch; re-running it would move the status
	// backward through the state machine.
	if t.Status != domain.TaskStatusPending {
		log.Warn("execute requested for non-pending task", "status", t.Status)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.registry.Add(id, cancel)
	defer o.registry.Remove(id)

	status := domain.TaskStatusInProgress
	stage := domain.InitialStage(t.Type)
	message := "Task started"
	if _, err := o.store.Update(ctx, id, store.TaskUpdate{
		Status:  &status,
		Stage:   &stage,
		Message: &message,
	}); err != nil {
		log.Error("failed to mark task in progress", "error", err)
		return
	}

	log.Info("task execution started", "stage", stage)
	o.notify(ctx, id, t.Type, status, t.Progress)

	handler, ok := handlerFor(t.Type)
	if !ok {
		// Unrecognized type is a failure path of its own: no handler runs.
		log.Error("no handler for task type")
		o.failTask(ctx, log, t, ErrUnsupportedTaskType.Error()+": "+string(t.Type))
		return
	}

	result, err := handler(runCtx, o, t)
	if err != nil {
		if errors.Is(err, context.Canceled) || runCtx.Err() != nil {
			// The terminal cancelled state was already persisted by
			// CancelTask; writing anything here would race with it.
			log.Info("task execution cancelled")
			return
		}

		log.Error("task execution failed", "error", err)
		o.failTask(ctx, log, t, err.Error())
		return
	}

	status = domain.TaskStatusCompleted
	progress := 100.0
	message = "Task completed"
	if _, err := o.store.Update(ctx, id, store.TaskUpdate{
		Status:   &status,
		Progress: &progress,
		Message:  &message,
		Result:   result,
	}); err != nil {
		// Double fault: the work finished but the terminal state could not
		// be persisted. Log and swallow; the record stays in_progress for
		// an external sweep to reconcile.
		log.Error("failed to persist task completion", "error", err)
		return
	}

	log.Info("task completed")
	o.notify(ctx, id, t.Type, status, progress)
}

// CancelTask cancels a pending or in-progress task: it signals the running
// unit of work (if any) for cooperative teardown and persists the terminal
// cancelled state, preserving the last recorded progress. Cancelling a task
// that is already terminal is a no-op that returns the unchanged task.
// Returns ErrTaskNotFound if the task does not exist.
func (o *Orchestrator) CancelTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := o.logger.With("task_id", id)

	t, err := o.store.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, NewTaskError("cancel_task", "failed to retrieve task", err)
	}

	if !t.IsCancellable() {
		log.Info("cancel requested for non-cancellable task", "status", t.Status)
		return t, nil
	}

	// Best-effort signal; a pending task has no registry entry yet and a
	// completed one has already removed its own.
	signalled := o.registry.Cancel(id)

	status := domain.TaskStatusCancelled
	message := CancelledMessage
	updated, err := o.store.Update(ctx, id, store.TaskUpdate{
		Status:  &status,
		Message: &message,
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, NewTaskError("cancel_task", "failed to persist cancellation", err)
	}

	log.Info("task cancelled", "was_running", signalled, "progress", updated.Progress)
	o.notify(ctx, id, t.Type, updated.Status, updated.Progress)
	return updated, nil
}

// ListTasks returns tasks ordered by creation time descending, optionally
// filtered by status, along with the total count for the same filter.
func (o *Orchestrator) ListTasks(
	ctx context.Context,
	status *domain.TaskStatus,
	limit, offset int,
) ([]*domain.Task, int64, error) {
	tasks, err := o.store.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, NewTaskError("list_tasks", "failed to list tasks", err)
	}

	total, err := o.store.Count(ctx, status)
	if err != nil {
		return nil, 0, NewTaskError("list_tasks", "failed to count tasks", err)
	}

	return tasks, total, nil
}

// DeleteExpiredTasks removes every task whose expiry is strictly before the
// cutoff and returns the number removed.
func (o *Orchestrator) DeleteExpiredTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := o.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, NewTaskError("delete_expired_tasks", "failed to delete expired tasks", err)
	}

	if deleted > 0 {
		o.logger.Info("expired tasks deleted", "count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// failTask persists the failed terminal state. A secondary failure while
// persisting is logged and swallowed: the caller of ExecuteTask never sees
// handler errors.
func (o *Orchestrator) failTask(ctx context.Context, log *slog.Logger, t *domain.Task, errMsg string) {
	status := domain.TaskStatusFailed
	message := "Task failed"
	updated, err := o.store.Update(ctx, t.ID, store.TaskUpdate{
		Status:  &status,
		Message: &message,
		Error:   &errMsg,
	})
	if err != nil {
		log.Error("failed to persist task failure", "error", err)
		return
	}
	o.notify(ctx, t.ID, t.Type, status, updated.Progress)
}

// notify emits a lifecycle status event when an emitter is configured.
// Handler errors are logged and otherwise ignored.
func (o *Orchestrator) notify(
	ctx context.Context,
	id uuid.UUID,
	taskType domain.TaskType,
	status domain.TaskStatus,
	progress float64,
) {
	if o.config.Emitter == nil {
		return
	}

	event := events.NewTaskStatusEvent(id, string(taskType), string(status), progress)
	if err := o.config.Emitter.EmitEvent(ctx, event); err != nil {
		o.logger.Warn("status event emission failed",
			"task_id", id,
			"status", status,
			"error", err)
	}
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
