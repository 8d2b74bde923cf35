package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the ranktime tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("ranktime")

// StartRunSpan starts a span covering the whole measured run.
// Uses the global OTel tracer.
func StartRunSpan(ctx context.Context, runName, runID string, rank int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ranktime.run",
		trace.WithAttributes(
			attribute.String("run.name", runName),
			attribute.String("run.id", runID),
			attribute.Int("rank", rank),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPhaseSpan starts a span for one finalize phase (normalize,
// collect). The phase span should be a child of the run span.
func StartPhaseSpan(ctx context.Context, phase string, rank int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ranktime."+phase,
		trace.WithAttributes(
			attribute.Int("rank", rank),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
