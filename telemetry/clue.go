package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// ClueLogger delegates to goa.design/clue/log, reading formatting and debug
	// settings from the context (set via log.Context and log.WithFormat/
	// log.WithDebug in the process entry point).
	ClueLogger struct{}

	// OTelMetrics records counters, histograms, and gauges against the global
	// OTEL MeterProvider. Configure the provider via clue.ConfigureOpenTelemetry
	// (or equivalent) before constructing one.
	OTelMetrics struct {
		meter metric.Meter
	}

	// OTelTracer starts spans against the global OTEL TracerProvider.
	OTelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger { return ClueLogger{} }

// NewOTelMetrics constructs a Metrics recorder scoped to the given instrumentation name.
func NewOTelMetrics(scope string) Metrics {
	return &OTelMetrics{meter: otel.Meter(scope)}
}

// NewOTelTracer constructs a Tracer scoped to the given instrumentation name.
func NewOTelTracer(scope string) Tracer {
	return &OTelTracer{tracer: otel.Tracer(scope)}
}

func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToFields(keyvals)...)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToFields(keyvals)...)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fields := []log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}
	log.Warn(ctx, append(fields, kvToFields(keyvals)...)...)
}

func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToFields(keyvals)...)...)
}

func (m *OTelMetrics) IncrCounter(ctx context.Context, name string, delta int64, labels map[string]string) {
	counter, err := m.meter.Int64Counter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, delta, metric.WithAttributes(labelsToAttrs(labels)...))
}

func (m *OTelMetrics) RecordDuration(ctx context.Context, name string, seconds float64, labels map[string]string) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(ctx, seconds, metric.WithAttributes(labelsToAttrs(labels)...))
}

func (m *OTelMetrics) SetGauge(ctx context.Context, name string, value float64, labels map[string]string) {
	// OTEL has no synchronous gauge instrument; a single-sample histogram is
	// the closest equivalent that still exports through the metric pipeline.
	hist, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	hist.Record(ctx, value, metric.WithAttributes(labelsToAttrs(labels)...))
}

func (t *OTelTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(labelsToAttrs(attrs)...))
	return newCtx, &otelSpan{span: span}
}

func (s *otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) SetAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s *otelSpan) End() { s.span.End() }

func kvToFields(keyvals []any) []log.Fielder {
	var fields []log.Fielder
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fields = append(fields, log.KV{K: k, V: v})
	}
	return fields
}

func labelsToAttrs(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
