package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope names.
const (
	scopeCalc  = "calcapi/calc"
	scopeAudit = "calcapi/audit"
)

// StartOperationSpan creates a span around evaluating one arithmetic request.
// The returned function ends the span, recording err when it is non-nil.
//
//	ctx, end := tracing.StartOperationSpan(ctx, "divide")
//	defer func() { end(err) }()
func StartOperationSpan(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(scopeCalc).Start(ctx, "calc."+operation,
		trace.WithAttributes(attribute.String("calc.operation", operation)),
	)
	return ctx, endFunc(span)
}

// StartStoreSpan creates a client span for one audit store write.
// system is the db.system value ("postgresql", "redis", "memory"); target is
// the table or stream written.
func StartStoreSpan(ctx context.Context, system, operation, target string) (context.Context, func(error)) {
	name := operation
	if target != "" {
		name = operation + " " + target
	}
	ctx, span := otel.Tracer(scopeAudit).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
		),
	)
	if target != "" {
		span.SetAttributes(attribute.String("db.collection.name", target))
	}
	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
