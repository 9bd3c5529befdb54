package telemetry

import (
	"context"

	"go.trai.ch/kiln/internal/core/ports"
)

var _ ports.Tracer = NoOpTracer{}

// NoOpTracer discards spans. It is the workspace default when no tracer is configured.
type NoOpTracer struct{}

// NewNoOpTracer returns a NoOpTracer.
func NewNoOpTracer() NoOpTracer {
	return NoOpTracer{}
}

// Start returns ctx unchanged and a span that discards everything.
func (NoOpTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noOpSpan{}
}

// EmitPlan does nothing.
func (NoOpTracer) EmitPlan(context.Context, []string, map[string][]string, []string) {}

type noOpSpan struct{}

func (noOpSpan) Write(p []byte) (int, error) { return len(p), nil }
func (noOpSpan) End()                        {}
func (noOpSpan) RecordError(error)           {}
func (noOpSpan) SetAttribute(string, any)    {}
