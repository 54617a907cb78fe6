// Package engine defines the cooperative-scheduler abstraction for the task
// inventory spec §5 lists: the coordinator tactical loop, the mastermind
// strategic loop, active BDI runs, the LLM gateway's rate-limiter ticker,
// and persistent-store background flushers. Each is a single long-running
// task, never a worker pool (spec §5: "there is no pool of BDI workers in
// the core spec"). Grounded on the teacher's runtime/agent/engine.Engine
// abstraction, narrowed from its full Temporal-oriented workflow/activity
// surface (WorkflowDefinition, ActivityDefinition, Future, SignalChannel) to
// the one capability this module actually needs: register a named
// cooperative task, run every registered task, and shut them down together.
// engine/inmem is the default goroutine-based implementation; engine/temporal
// is the optional durable adapter the teacher itself models as a pluggable
// backend.
package engine

import "context"

// TaskFunc is one cooperative task (spec §5's task inventory entries).
// Implementations must return promptly once ctx is cancelled.
type TaskFunc func(ctx context.Context) error

// Engine registers and runs the cooperative task set.
type Engine interface {
	// RegisterTask adds a named task. Registering two tasks under the same
	// name is an error. Must be called before Start.
	RegisterTask(name string, fn TaskFunc) error

	// Start launches every registered task and returns immediately; it does
	// not block for tasks to finish; use Stop to shut them down and wait.
	Start(ctx context.Context) error

	// Stop signals every running task to shut down and waits for them to
	// return, bounded by ctx's deadline.
	Stop(ctx context.Context) error
}
