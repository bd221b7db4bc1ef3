package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/events"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/store"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/testutils"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newTestOrchestrator builds an orchestrator over a fresh in-memory store
// with a short step delay so handler runs finish quickly.
func newTestOrchestrator(t *testing.T) (*Orchestrator, *MockTaskStore) {
	t.Helper()

	mockStore := NewMockTaskStore()
	config := DefaultOrchestratorConfig()
	config.StepDelay = time.Millisecond

	orch, err := NewOrchestrator(mockStore, config, newTestLogger())
	require.NoError(t, err)
	return orch, mockStore
}

func TestNewOrchestrator(t *testing.T) {
	t.Parallel()

	t.Run("nil store rejected", func(t *testing.T) {
		t.Parallel()

		orch, err := NewOrchestrator(nil, DefaultOrchestratorConfig(), newTestLogger())
		assert.Error(t, err)
		assert.Nil(t, orch)
	})

	t.Run("zero step delay falls back to default", func(t *testing.T) {
		t.Parallel()

		orch, err := NewOrchestrator(NewMockTaskStore(), OrchestratorConfig{}, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultOrchestratorConfig().StepDelay, orch.config.StepDelay)
	})
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	t.Run("defaults for every valid type", func(t *testing.T) {
		t.Parallel()
		orch, mockStore := newTestOrchestrator(t)

		for _, taskType := range []domain.TaskType{
			domain.TaskTypeDocumentProcessing,
			domain.TaskTypeReportGeneration,
			domain.TaskTypeReportRefinement,
			domain.TaskTypeReportExport,
		} {
			created, err := orch.CreateTask(context.Background(), taskType, map[string]any{"k": "v"})
			require.NoError(t, err)

			assert.Equal(t, domain.TaskStatusPending, created.Status)
			assert.Equal(t, domain.TaskStageIdle, created.Stage)
			assert.Equal(t, 0.0, created.Progress)
			assert.Equal(t, created.CreatedAt.Add(domain.TaskRetention), created.ExpiresAt)

			persisted, err := mockStore.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusPending, persisted.Status)
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		t.Parallel()
		orch, _ := newTestOrchestrator(t)

		created, err := orch.CreateTask(context.Background(), domain.TaskType("bogus"), nil)
		assert.Error(t, err)
		assert.Nil(t, created)

		var taskErr *TaskError
		assert.ErrorAs(t, err, &taskErr)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		orch, mockStore := newTestOrchestrator(t)
		mockStore.CreateFn = func(ctx context.Context, task *domain.Task) error {
			return errors.New("connection reset")
		}

		created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportExport, nil)
		assert.Error(t, err)
		assert.Nil(t, created)
	})
}

func TestGetTask(t *testing.T) {
	t.Parallel()
	orch, _ := newTestOrchestrator(t)

	created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportGeneration, nil)
	require.NoError(t, err)

	t.Run("existing task", func(t *testing.T) {
		got, err := orch.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("missing task", func(t *testing.T) {
		got, err := orch.GetTask(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.Nil(t, got)
	})
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()
	orch, _ := newTestOrchestrator(t)

	created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportGeneration, nil)
	require.NoError(t, err)

	t.Run("progress clamped above", func(t *testing.T) {
		progress := 250.0
		updated, err := orch.UpdateTask(context.Background(), created.ID, store.TaskUpdate{
			Progress: &progress,
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, updated.Progress)
	})

	t.Run("progress clamped below", func(t *testing.T) {
		progress := -10.0
		updated, err := orch.UpdateTask(context.Background(), created.ID, store.TaskUpdate{
			Progress: &progress,
		})
		require.NoError(t, err)
		assert.Equal(t, 0.0, updated.Progress)
	})

	t.Run("missing task", func(t *testing.T) {
		message := "hello"
		updated, err := orch.UpdateTask(context.Background(), uuid.New(), store.TaskUpdate{
			Message: &message,
		})
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.Nil(t, updated)
	})
}

func TestExecuteTask(t *testing.T) {
	t.Parallel()

	t.Run("document processing runs to completion", func(t *testing.T) {
		t.Parallel()
		orch, _ := newTestOrchestrator(t)

		created, err := orch.CreateTask(context.Background(), domain.TaskTypeDocumentProcessing,
			map[string]any{"document_ids": []any{"a", "b", "c"}})
		require.NoError(t, err)

		orch.ExecuteTask(context.Background(), created.ID)

		done, err := orch.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, done.Status)
		assert.Equal(t, 100.0, done.Progress)
		assert.Equal(t, "Task completed", done.Message)
		require.NotNil(t, done.Result)
		processed, ok := done.Result["processed_count"].(int)
		require.True(t, ok)
		assert.GreaterOrEqual(t, processed, 0)
		assert.Equal(t, 0, orch.Registry().Len())
	})

	t.Run("every supported type completes", func(t *testing.T) {
		t.Parallel()
		orch, _ := newTestOrchestrator(t)

		for _, taskType := range []domain.TaskType{
			domain.TaskTypeReportGeneration,
			domain.TaskTypeReportRefinement,
			domain.TaskTypeReportExport,
		} {
			created, err := orch.CreateTask(context.Background(), taskType, nil)
			require.NoError(t, err)

			orch.ExecuteTask(context.Background(), created.ID)

			done, err := orch.GetTask(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusCompleted, done.Status, "type %s", taskType)
			assert.Equal(t, 100.0, done.Progress)
			assert.NotNil(t, done.Result)
		}
	})

	t.Run("missing task is a silent no-op", func(t *testing.T) {
		t.Parallel()
		orch, _ := newTestOrchestrator(t)

		orch.ExecuteTask(context.Background(), uuid.New())
		assert.Equal(t, 0, orch.Registry().Len())
	})

	t.Run("non-pending task is not re-run", func(t *testing.T) {
		t.Parallel()
		orch, mockStore := newTestOrchestrator(t)

		created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportExport, nil)
		require.NoError(t, err)

		orch.ExecuteTask(context.Background(), created.ID)
		first, err := orch.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		require.Equal(t, domain.TaskStatusCompleted, first.Status)

		mockStore.UpdateFn = func(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
			t.Error("unexpected store update for terminal task")
			return nil, store.ErrUpdateFailed
		}
		orch.ExecuteTask(context.Background(), created.ID)
	})

	t.Run("unrecognized type fails without handler side effects", func(t *testing.T) {
		t.Parallel()
		orch, mockStore := newTestOrchestrator(t)

		// The public surface rejects unknown types, so smuggle one straight
		// into the store the way a schema drift would.
		rogue := &domain.Task{
			ID:        uuid.New(),
			Type:      domain.TaskType("holographic_rendering"),
			Status:    domain.TaskStatusPending,
			Stage:     domain.TaskStageIdle,
			Message:   "Task created",
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(domain.TaskRetention),
		}
		require.NoError(t, mockStore.Create(context.Background(), rogue))

		orch.ExecuteTask(context.Background(), rogue.ID)

		failed, err := orch.GetTask(context.Background(), rogue.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, failed.Status)
		assert.NotEmpty(t, failed.Error)
		assert.Contains(t, failed.Error, "holographic_rendering")
		assert.Nil(t, failed.Result)
		assert.Equal(t, 0, orch.Registry().Len())
	})

	t.Run("handler error is captured into the record", func(t *testing.T) {
		t.Parallel()

		mockStore := NewMockTaskStore()
		config := DefaultOrchestratorConfig()
		config.StepDelay = time.Millisecond
		config.Drafter = &failingDrafter{err: errors.New("model unavailable")}

		orch, err := NewOrchestrator(mockStore, config, newTestLogger())
		require.NoError(t, err)

		created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportGeneration, nil)
		require.NoError(t, err)

		orch.ExecuteTask(context.Background(), created.ID)

		failed, err := orch.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, failed.Status)
		assert.Contains(t, failed.Error, "model unavailable")
		assert.Equal(t, 0, orch.Registry().Len())
	})
}

// failingDrafter always fails, standing in for an unreachable LLM backend.
type failingDrafter struct {
	err error
}

func (d *failingDrafter) DraftReport(ctx context.Context, params map[string]any) (string, error) {
	return "", d.err
}

func TestCancelTask(t *testing.T) {
	t.Parallel()

	t.Run("pending task cancels immediately preserving progress", func(t *testing.T) {
		t.Parallel()
		orch, _ := newTestOrchestrator(t)

		created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportGeneration, nil)
		require.NoError(t, err)

		progress := 40.0
		_, err = orch.UpdateTask(context.Background(), created.ID, store.TaskUpdate{
			Progress: &progress,
		})
		require.NoError(t, err)

		cancelled, err := orch.CancelTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCancelled, cancelled.Status)
		assert.Equal(t, CancelledMessage, cancelled.Message)
		assert.Equal(t, 40.0, cancelled.Progress)
	})

	t.Run("completed task is a no-op", func(t *testing.T) {
		t.Parallel()
		orch, mockStore := newTestOrchestrator(t)

		created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportExport, nil)
		require.NoError(t, err)
		orch.ExecuteTask(context.Background(), created.ID)

		before, err := orch.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		require.Equal(t, domain.TaskStatusCompleted, before.Status)

		mockStore.UpdateFn = func(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
			t.Error("unexpected store mutation when cancelling a terminal task")
			return nil, store.ErrUpdateFailed
		}

		unchanged, err := orch.CancelTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Status, unchanged.Status)
		assert.Equal(t, before.Message, unchanged.Message)
		assert.Equal(t, before.UpdatedAt, unchanged.UpdatedAt)
	})

	t.Run("missing task", func(t *testing.T) {
		t.Parallel()
		orch, _ := newTestOrchestrator(t)

		cancelled, err := orch.CancelTask(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.Nil(t, cancelled)
	})

	t.Run("double cancel is idempotent", func(t *testing.T) {
		t.Parallel()
		orch, _ := newTestOrchestrator(t)

		created, err := orch.CreateTask(context.Background(), domain.TaskTypeDocumentProcessing, nil)
		require.NoError(t, err)

		first, err := orch.CancelTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCancelled, first.Status)

		second, err := orch.CancelTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.Message, second.Message)
		assert.Equal(t, first.Progress, second.Progress)
	})

	t.Run("cancel during execution stops further persistence", func(t *testing.T) {
		t.Parallel()

		mockStore := NewMockTaskStore()
		config := DefaultOrchestratorConfig()
		config.StepDelay = 250 * time.Millisecond

		orch, err := NewOrchestrator(mockStore, config, newTestLogger())
		require.NoError(t, err)

		created, err := orch.CreateTask(context.Background(), domain.TaskTypeDocumentProcessing, nil)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			orch.ExecuteTask(context.Background(), created.ID)
		}()

		// Wait until the handler is actually running.
		require.Eventually(t, func() bool {
			current, err := orch.GetTask(context.Background(), created.ID)
			return err == nil && current.Status == domain.TaskStatusInProgress
		}, 2*time.Second, 5*time.Millisecond)

		cancelled, err := orch.CancelTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCancelled, cancelled.Status)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("execution did not unwind after cancellation")
		}

		// The handler must not have overwritten the cancel-driven terminal
		// write on its way out.
		final, err := orch.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCancelled, final.Status)
		assert.Equal(t, CancelledMessage, final.Message)
		assert.Equal(t, 0, orch.Registry().Len())
	})
}

func TestListTasks(t *testing.T) {
	t.Parallel()
	orch, _ := newTestOrchestrator(t)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportGeneration, nil)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	// Push one task to a different status for filter coverage.
	cancelled, err := orch.CancelTask(context.Background(), ids[0])
	require.NoError(t, err)

	t.Run("unfiltered with pagination", func(t *testing.T) {
		tasks, total, err := orch.ListTasks(context.Background(), nil, 3, 0)
		require.NoError(t, err)
		assert.Len(t, tasks, 3)
		assert.Equal(t, int64(5), total)

		rest, _, err := orch.ListTasks(context.Background(), nil, 3, 3)
		require.NoError(t, err)
		assert.Len(t, rest, 2)
	})

	t.Run("status filter", func(t *testing.T) {
		status := domain.TaskStatusCancelled
		tasks, total, err := orch.ListTasks(context.Background(), &status, 10, 0)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, cancelled.ID, tasks[0].ID)
	})
}

func TestDeleteExpiredTasks(t *testing.T) {
	t.Parallel()
	orch, mockStore := newTestOrchestrator(t)

	cutoff := time.Now().UTC()

	expired, err := orch.CreateTask(context.Background(), domain.TaskTypeReportExport, nil)
	require.NoError(t, err)
	boundary, err := orch.CreateTask(context.Background(), domain.TaskTypeReportExport, nil)
	require.NoError(t, err)
	fresh, err := orch.CreateTask(context.Background(), domain.TaskTypeReportExport, nil)
	require.NoError(t, err)

	// Rewrite expiries directly: one strictly before the cutoff, one exactly
	// at it, one after.
	mockStore.tasks[expired.ID].ExpiresAt = cutoff.Add(-time.Minute)
	mockStore.tasks[boundary.ID].ExpiresAt = cutoff
	mockStore.tasks[fresh.ID].ExpiresAt = cutoff.Add(time.Hour)

	deleted, err := orch.DeleteExpiredTasks(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = orch.GetTask(context.Background(), expired.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// The boundary task (expires_at == cutoff) must survive.
	_, err = orch.GetTask(context.Background(), boundary.ID)
	assert.NoError(t, err)
	_, err = orch.GetTask(context.Background(), fresh.ID)
	assert.NoError(t, err)
}

// capturingEmitter records emitted lifecycle events for assertions.
type capturingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskStatusEvent
}

func (e *capturingEmitter) EmitEvent(ctx context.Context, event *events.TaskStatusEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *capturingEmitter) statuses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.events))
	for _, event := range e.events {
		out = append(out, event.Status)
	}
	return out
}

func TestOrchestratorEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()

	emitter := &capturingEmitter{}
	config := DefaultOrchestratorConfig()
	config.StepDelay = time.Millisecond
	config.Emitter = emitter

	orch, err := NewOrchestrator(NewMockTaskStore(), config, newTestLogger())
	require.NoError(t, err)

	created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportExport, nil)
	require.NoError(t, err)
	orch.ExecuteTask(context.Background(), created.ID)

	assert.Equal(t, []string{"pending", "in_progress", "completed"}, emitter.statuses())
	for _, event := range emitter.events {
		assert.Equal(t, created.ID, event.TaskID)
		assert.Equal(t, string(domain.TaskTypeReportExport), event.TaskType)
	}
}

// failingEmitter rejects every event to exercise the warn path.
type failingEmitter struct{}

func (failingEmitter) EmitEvent(_ context.Context, _ *events.TaskStatusEvent) error {
	return errors.New("broker unavailable")
}

func TestOrchestratorEmitFailureDoesNotBlockLifecycle(t *testing.T) {
	t.Parallel()

	handler := testutils.NewTestSlogHandler()
	config := DefaultOrchestratorConfig()
	config.StepDelay = time.Millisecond
	config.Emitter = failingEmitter{}

	orch, err := NewOrchestrator(NewMockTaskStore(), config, slog.New(handler))
	require.NoError(t, err)

	created, err := orch.CreateTask(context.Background(), domain.TaskTypeReportExport, nil)
	require.NoError(t, err)
	orch.ExecuteTask(context.Background(), created.ID)

	// The task still runs to completion despite every emission failing.
	final, err := orch.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, final.Status)

	var warned bool
	for _, entry := range handler.Entries() {
		if entry["message"] == "status event emission failed" {
			warned = true
			assert.Equal(t, slog.LevelWarn.String(), entry["level"])
		}
	}
	assert.True(t, warned, "expected a warning for the failed emission")
}
