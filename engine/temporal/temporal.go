// Package temporal is the optional durable engine.Engine adapter, wiring
// go.temporal.io/sdk so the strategic and tactical loops survive process
// restarts (spec §5's "future extension" path, which the teacher's own
// runtime/agent/engine/temporal adapter models as a pluggable backend
// alongside an in-memory default). Each registered task is wrapped as a
// Temporal activity (ordinary, non-deterministic Go code is permitted
// there) driven by a thin workflow that executes the activity once and
// relies on Temporal's built-in retry-on-worker-crash behavior to resume it
// after an outage, rather than replaying a hand-rolled continue-as-new
// loop for code whose body is not workflow-deterministic.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/mindforge-ai/mindforge/engine"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/telemetry"
)

// Options configures the Temporal engine adapter.
type Options struct {
	// Client is an optional pre-configured client. If nil, ClientOptions
	// builds one lazily.
	Client client.Client
	// ClientOptions builds a client when Client is nil.
	ClientOptions client.Options
	// TaskQueue is the single task queue every task's workflow/activity is
	// registered and started on.
	TaskQueue string
	// WorkerOptions is forwarded to worker.New.
	WorkerOptions worker.Options
	// ActivityTimeout bounds each task's activity (Temporal requires a
	// finite StartToCloseTimeout); this module's tasks are long-running
	// cooperative loops, so this should be set generously (default 24h).
	ActivityTimeout time.Duration

	Log telemetry.Logger
}

// Engine implements engine.Engine using Temporal as the durable backend.
type Engine struct {
	opts   Options
	client client.Client
	owns   bool
	worker worker.Worker
	log    telemetry.Logger

	mu      sync.Mutex
	tasks   map[string]engine.TaskFunc
	started bool
}

var _ engine.Engine = (*Engine)(nil)

// New constructs a Temporal engine adapter. TaskQueue is required.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, errs.New(errs.KindInvalidRequest, "temporal: task queue is required")
	}
	log := opts.Log
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	if opts.ActivityTimeout <= 0 {
		opts.ActivityTimeout = 24 * time.Hour
	}

	cli := opts.Client
	owns := false
	if cli == nil {
		var err error
		cli, err = client.NewLazyClient(opts.ClientOptions)
		if err != nil {
			return nil, errs.Wrap(errs.KindToolExecutionError, err, "temporal: create client")
		}
		owns = true
	}

	return &Engine{opts: opts, client: cli, owns: owns, log: log, tasks: make(map[string]engine.TaskFunc)}, nil
}

// RegisterTask implements engine.Engine: it registers an activity running fn
// and a workflow that executes that activity once.
func (e *Engine) RegisterTask(name string, fn engine.TaskFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errs.New(errs.KindInvalidRequest, "temporal: cannot register a task after Start")
	}
	if name == "" {
		return errs.New(errs.KindInvalidRequest, "temporal: task name is required")
	}
	if _, exists := e.tasks[name]; exists {
		return errs.Newf(errs.KindInvalidRequest, "temporal: task %q already registered", name)
	}
	e.tasks[name] = fn
	return nil
}

// Start registers every task's workflow/activity with a worker bound to
// TaskQueue, starts that worker, and kicks off one workflow execution per
// task.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errs.New(errs.KindInvalidRequest, "temporal: already started")
	}
	tasks := make(map[string]engine.TaskFunc, len(e.tasks))
	for k, v := range e.tasks {
		tasks[k] = v
	}
	e.started = true
	e.mu.Unlock()

	w := worker.New(e.client, e.opts.TaskQueue, e.opts.WorkerOptions)
	e.worker = w

	for name, fn := range tasks {
		activityName := name + "-activity"
		workflowName := name + "-workflow"

		w.RegisterActivityWithOptions(activityFor(fn), activity.RegisterOptions{Name: activityName})
		w.RegisterWorkflowWithOptions(workflowFor(activityName, e.opts.ActivityTimeout), workflow.RegisterOptions{Name: workflowName})
	}

	if err := w.Start(); err != nil {
		return errs.Wrap(errs.KindToolExecutionError, err, "temporal: start worker")
	}

	for name := range tasks {
		workflowName := name + "-workflow"
		_, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        "mindforge-" + name,
			TaskQueue: e.opts.TaskQueue,
		}, workflowName)
		if err != nil {
			return errs.Wrap(errs.KindToolExecutionError, err, fmt.Sprintf("temporal: start workflow for task %q", name))
		}
	}
	return nil
}

// Stop stops the worker and, if this Engine created the client, closes it.
func (e *Engine) Stop(ctx context.Context) error {
	if e.worker != nil {
		e.worker.Stop()
	}
	if e.owns {
		e.client.Close()
	}
	return nil
}

// activityFor adapts a cooperative TaskFunc to a Temporal activity: activity
// code may block and perform arbitrary I/O, unlike workflow code.
func activityFor(fn engine.TaskFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return fn(ctx)
	}
}

// workflowFor returns a workflow that executes the named activity once with
// the given timeout, relying on Temporal's activity retry policy to recover
// from a worker crash mid-task.
func workflowFor(activityName string, timeout time.Duration) func(ctx workflow.Context) error {
	return func(ctx workflow.Context) error {
		actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: timeout,
		})
		return workflow.ExecuteActivity(actCtx, activityName).Get(actCtx, nil)
	}
}
