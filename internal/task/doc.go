// Package task manages the lifecycle of long-running background work.
// It turns multi-stage units of work (document processing, report
// generation, refinement, export) into trackable, cancellable entities with
// persisted progress, coordinating a durable record store, a process-local
// registry of running work, and cooperative cancellation.
package task
