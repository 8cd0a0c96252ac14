package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentmesh"

// StartTaskSpan starts a span for one inbound task execution.
func StartTaskSpan(ctx context.Context, agentName, taskID, contextID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task.execute",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("agent.name", agentName),
			attribute.String("task.id", taskID),
			attribute.String("task.context_id", contextID),
		),
	)
}

// StartDelegationSpan starts a span for an outbound delegation.
func StartDelegationSpan(ctx context.Context, agentURL string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task.delegate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("agent.url", agentURL)),
	)
}

// StartToolCallSpan starts a span for a tool call made while reasoning.
func StartToolCallSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(attribute.String("toolcall.tool", tool)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
