// Package telemetry defines the logging, tracing, and metrics interfaces used
// throughout the engine. Every component accepts these as explicit
// constructor arguments; there are no package-level loggers or ambient
// singletons.
package telemetry

import "context"

type (
	// Logger emits structured, leveled log records. Implementations must accept
	// an even number of keyvals and render them as structured fields rather
	// than interpolating them into the message string.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, histograms, and gauges scoped to a component
	// name. Implementations are safe for concurrent use.
	Metrics interface {
		IncrCounter(ctx context.Context, name string, delta int64, labels map[string]string)
		RecordDuration(ctx context.Context, name string, seconds float64, labels map[string]string)
		SetGauge(ctx context.Context, name string, value float64, labels map[string]string)
	}

	// Tracer starts spans for cooperative suspension points (LLM calls, tool
	// execution, subprocess invocation, atomic-store writes).
	Tracer interface {
		StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span)
	}

	// Span is a single unit of tracing; End must be called exactly once.
	Span interface {
		SetError(err error)
		SetAttribute(key, value string)
		End()
	}
)
