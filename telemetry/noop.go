package telemetry

import "context"

type (
	noopLogger  struct{}
	noopMetrics struct{}
	noopTracer  struct{}
	noopSpan    struct{}
)

// NewNoopLogger returns a Logger that discards every record. Useful for tests
// and tools that have not wired a real sink.
func NewNoopLogger() Logger { return noopLogger{} }

// NewNoopMetrics returns a Metrics recorder that discards every observation.
func NewNoopMetrics() Metrics { return noopMetrics{} }

// NewNoopTracer returns a Tracer that produces spans with no observable effect.
func NewNoopTracer() Tracer { return noopTracer{} }

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

func (noopMetrics) IncrCounter(context.Context, string, int64, map[string]string)     {}
func (noopMetrics) RecordDuration(context.Context, string, float64, map[string]string) {}
func (noopMetrics) SetGauge(context.Context, string, float64, map[string]string)      {}

func (noopTracer) StartSpan(ctx context.Context, _ string, _ map[string]string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) SetError(error)          {}
func (noopSpan) SetAttribute(string, string) {}
func (noopSpan) End()                     {}
