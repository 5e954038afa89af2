// Package telemetry defines the logging, metrics, and tracing seams the
// instance actor and its supporting packages log through, adapted from the
// teacher's runtime telemetry package. Interfaces are kept intentionally
// small so tests can supply lightweight stubs; production wiring uses the
// Clue-backed implementations in this package.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used by the instance actor (package
// actor). Implementations typically delegate to Clue but the
// interface stays small so tests can provide stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter and histogram helpers for instance-actor
// instrumentation: transition outcome counts (fired, retried, blocked) and
// firing latency.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so actor code stays agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// JobTelemetry captures observability metadata collected around a single
// job execution, recorded by the actor after the executor's done callback
// fires.
type JobTelemetry struct {
	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
	// Transition identifies which transition the job executed.
	Transition string
	// FailureCount is the cumulative failure count for this job, 0 on
	// first success.
	FailureCount int
	// Extra holds interaction-specific metadata (e.g. remote call status
	// codes, cache hits) not captured by the common fields.
	Extra map[string]any
}
