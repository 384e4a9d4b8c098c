// OpenTelemetry tracing support for directory observability.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps OpenTelemetry tracing with directory-specific helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: trace.NewNoopTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given name.
func NewTracer(name string) *Tracer {
	return &Tracer{tracer: otel.Tracer(name)}
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// OperationSpanOptions carries attributes for one directory operation.
type OperationSpanOptions struct {
	AgentID   string
	RequestID string
	Tier      string
	Results   int
}

// StartOperationSpan starts a span for a directory operation such as
// register or search.
func (t *Tracer) StartOperationSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "directory."+op, trace.WithSpanKind(trace.SpanKindServer))
}

// EndOperationSpan ends an operation span with attributes and error
// status.
func (t *Tracer) EndOperationSpan(span trace.Span, opts OperationSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("directory.request_id", opts.RequestID),
	}
	if opts.AgentID != "" {
		attrs = append(attrs, attribute.String("directory.agent_id", opts.AgentID))
	}
	if opts.Tier != "" {
		attrs = append(attrs, attribute.String("directory.tier", opts.Tier))
	}
	if opts.Results > 0 {
		attrs = append(attrs, attribute.Int("directory.results", opts.Results))
	}
	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// StartSweepSpan starts a span for one lifecycle sweep pass.
func (t *Tracer) StartSweepSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "lifecycle.sweep", trace.WithSpanKind(trace.SpanKindInternal))
}

// EndSweepSpan ends a sweep span with transition and removal counts.
func (t *Tracer) EndSweepSpan(span trace.Span, transitions, removals int) {
	span.SetAttributes(
		attribute.Int("lifecycle.transitions", transitions),
		attribute.Int("lifecycle.removals", removals),
	)
	span.SetStatus(codes.Ok, "")
	span.End()
}
