package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/store"
	"github.com/google/uuid"
)

// MockTaskStore implements store.TaskStore in memory for testing. Individual
// operations can be overridden through the *Fn fields to simulate store
// failures.
type MockTaskStore struct {
	mutex sync.RWMutex
	tasks map[uuid.UUID]*domain.Task

	CreateFn        func(ctx context.Context, task *domain.Task) error
	GetByIDFn       func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	UpdateFn        func(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error)
	DeleteExpiredFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewMockTaskStore creates a new MockTaskStore with default implementations.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// Create implements store.TaskStore.Create.
func (s *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, task)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}

	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, store.ErrTaskNotFound
	}

	copied := *task
	return &copied, nil
}

// Update implements store.TaskStore.Update, merging the partial update and
// stamping updated_at.
func (s *MockTaskStore) Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, id, update)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, store.ErrTaskNotFound
	}

	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Stage != nil {
		task.Stage = *update.Stage
	}
	if update.Progress != nil {
		task.Progress = *update.Progress
	}
	if update.Message != nil {
		task.Message = *update.Message
	}
	if update.Result != nil {
		task.Result = update.Result
	}
	if update.Error != nil {
		task.Error = *update.Error
	}
	if update.EstimatedTimeRemaining != nil {
		task.EstimatedTimeRemaining = update.EstimatedTimeRemaining
	}
	if update.Quality != nil {
		task.Quality = update.Quality
	}
	if update.Iterations != nil {
		task.Iterations = update.Iterations
	}
	if update.CanProceed != nil {
		task.CanProceed = update.CanProceed
	}
	task.UpdatedAt = time.Now().UTC()

	copied := *task
	return &copied, nil
}

// List implements store.TaskStore.List.
func (s *MockTaskStore) List(ctx context.Context, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	matched := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if status != nil && task.Status != *status {
			continue
		}
		copied := *task
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return []*domain.Task{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, nil
}

// Count implements store.TaskStore.Count.
func (s *MockTaskStore) Count(ctx context.Context, status *domain.TaskStatus) (int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var count int64
	for _, task := range s.tasks {
		if status == nil || task.Status == *status {
			count++
		}
	}
	return count, nil
}

// DeleteExpired implements store.TaskStore.DeleteExpired.
func (s *MockTaskStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.DeleteExpiredFn != nil {
		return s.DeleteExpiredFn(ctx, cutoff)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var deleted int64
	for id, task := range s.tasks {
		if task.ExpiresAt.Before(cutoff) {
			delete(s.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}
