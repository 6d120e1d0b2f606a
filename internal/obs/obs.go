// Package obs provides the operational visibility surface for wardcore:
// operation recorders, trace exporters, and live metric gauges.
package obs

import (
	"context"
	"time"
)

// Recorder observes the outcome and duration of named operations such as
// simulation ticks, store writes, and forecast cycles.
type Recorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, Span)
}

// Span ends a traced operation, recording the terminal error if any.
type Span interface {
	End(err error)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// Observe implements Recorder.
func (NoopRecorder) Observe(context.Context, string, bool, time.Duration) {}

// NoopTracer emits no spans.
type NoopTracer struct{}

// Start implements Tracer.
func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
