package task

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-local mapping from task id to the cancel handle of
// the unit of work currently executing that task. An entry exists only while
// the task is actively running in this process; everything else (pending
// dispatch, terminal states, tasks owned by other processes) is absent.
//
// The registry exists solely to support cooperative cancellation. Removal is
// idempotent, which resolves the race between a cancel request and natural
// completion: whichever side removes the entry second is a no-op.
type Registry struct {
	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		running: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Add records the cancel handle for a task that is about to start running.
// It must be called immediately before dispatching the unit of work.
func (r *Registry) Add(id uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[id] = cancel
}

// Remove drops the entry for the given task id. Removing an absent entry is
// a no-op, so callers can defer Remove unconditionally on every exit path.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, id)
}

// Cancel signals the running unit of work for the given task id, if any, and
// removes its entry. The signal marks the work for cooperative teardown at
// its next suspension point; it does not force-terminate anything. Returns
// true if an entry existed.
func (r *Registry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.running[id]
	if ok {
		delete(r.running, id)
	}
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Len reports how many tasks are currently registered as running.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
