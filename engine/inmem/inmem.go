// Package inmem is the default engine.Engine implementation: every
// registered task runs as its own goroutine, cancelled together on Stop.
// Grounded on the teacher's engine abstraction, simplified here to plain
// goroutine lifecycle management since this module's tasks (tactical loop,
// strategic loop, BDI runs, rate-limiter ticker, store flushers) need
// cooperative cancellation, not durable replay.
package inmem

import (
	"context"
	"sync"

	"github.com/mindforge-ai/mindforge/engine"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/telemetry"
)

// Engine implements engine.Engine over goroutines.
type Engine struct {
	Log telemetry.Logger

	mu      sync.Mutex
	tasks   map[string]engine.TaskFunc
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	errs    map[string]error
}

// New constructs an empty Engine.
func New(log telemetry.Logger) *Engine {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Engine{Log: log, tasks: make(map[string]engine.TaskFunc), errs: make(map[string]error)}
}

var _ engine.Engine = (*Engine)(nil)

// RegisterTask implements engine.Engine.
func (e *Engine) RegisterTask(name string, fn engine.TaskFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errs.New(errs.KindInvalidRequest, "inmem: cannot register a task after Start")
	}
	if name == "" {
		return errs.New(errs.KindInvalidRequest, "inmem: task name is required")
	}
	if _, exists := e.tasks[name]; exists {
		return errs.Newf(errs.KindInvalidRequest, "inmem: task %q already registered", name)
	}
	e.tasks[name] = fn
	return nil
}

// Start implements engine.Engine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errs.New(errs.KindInvalidRequest, "inmem: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.started = true
	tasks := make(map[string]engine.TaskFunc, len(e.tasks))
	for k, v := range e.tasks {
		tasks[k] = v
	}
	e.mu.Unlock()

	for name, fn := range tasks {
		e.wg.Add(1)
		go func(name string, fn engine.TaskFunc) {
			defer e.wg.Done()
			if err := fn(runCtx); err != nil && runCtx.Err() == nil {
				e.Log.Error(runCtx, "engine: task exited with error", "task", name, "error", err)
				e.mu.Lock()
				e.errs[name] = err
				e.mu.Unlock()
			}
		}(name, fn)
	}
	return nil
}

// Stop implements engine.Engine.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
