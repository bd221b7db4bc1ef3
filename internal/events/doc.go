// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose
// coupling between components in the system. The task orchestrator emits a
// status event on every lifecycle transition without knowing which handlers
// will process it, enabling notification fan-out (logging, webhooks, metrics)
// without circular dependencies.
//
// The primary components are:
// - TaskStatusEvent: Represents a task lifecycle transition
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
