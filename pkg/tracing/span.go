package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// scopeName is the instrumentation scope for spans the orchestrator starts
// on its own behalf.
const scopeName = "cqo"

// StartSpan starts a span under the orchestrator's own tracer, parented to
// whatever span the context already carries. Pass the returned context to
// downstream calls so child spans and log correlation pick it up.
//
//	ctx, span := tracing.StartSpan(ctx, "orchestrator.service",
//	    trace.WithAttributes(tracing.ServiceAttributes("postgres", "starting")...))
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(scopeName).Start(ctx, name, opts...)
}

// StartSpanWithTracer starts a span under an explicitly named tracer. The
// HTTP middleware uses this so server spans carry the embedding service's
// name as their instrumentation scope rather than the orchestrator's.
func StartSpanWithTracer(ctx context.Context, tracerName, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// SetSpanError records err on the context's span and flips its status to
// Error. No-op when err is nil or the context has no recording span.
func SetSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent stamps a timestamped event onto the context's span. The
// health poller uses this to make every probe attempt visible inside the
// service span without the cost of a span per attempt.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// RunAttributes describes an orchestration run span.
func RunAttributes(runID string, serviceCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.Int("run.service_count", serviceCount),
	}
}

// ServiceAttributes describes a per-service startup span.
func ServiceAttributes(service, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.id", service),
		attribute.String("service.state", state),
	}
}

// HealthCheckAttributes describes one health probe attempt.
func HealthCheckAttributes(service string, attempt int, healthy bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("healthcheck.service", service),
		attribute.Int("healthcheck.attempt", attempt),
		attribute.Bool("healthcheck.healthy", healthy),
	}
}
