package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PhaseFunc is one scheduler phase (server step, flow engine, migration step, ...).
type PhaseFunc func(ctx context.Context) error

// TracePhase wraps a scheduler phase in a span named after the phase and tagged with
// the tick step and phase attributes, recording the phase's error (if any) on the span before returning it unchanged.
// This is the tracing seam the scheduler wraps every phase of every tick with; there
// is no gRPC server in this module, so there is nothing to intercept at the transport
// level, only the tick loop itself.
func TracePhase(ctx context.Context, step int, phase string, fn PhaseFunc) error {
	ctx, span := StartSpan(ctx, phase,
		trace.WithSpanKind(trace.SpanKindInternal),
		WithAttributes(TickAttributes(step, phase)...),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
