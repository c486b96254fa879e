package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CommandMeta describes the command being recorded. It never carries
// command option values.
type CommandMeta struct {
	// Command is the command type, e.g. "find".
	Command string
	// Namespace is "<db>.<collection>" when known.
	Namespace string
}

// SpanName returns the span name for this command.
// Format: querystats.record.<command>
func (m CommandMeta) SpanName() string {
	if m.Command == "" {
		return "querystats.record.unknown"
	}
	return "querystats.record." + m.Command
}

// Validate reports whether the metadata names a command.
func (m CommandMeta) Validate() error {
	if m.Command == "" {
		return ErrMissingCommand
	}
	return nil
}

func (m CommandMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("command", m.Command)}
	if m.Namespace != "" {
		attrs = append(attrs, attribute.String("namespace", m.Namespace))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing of the record path.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: End must be best-effort and must not panic.
type Tracer interface {
	// Start starts a span for recording one command.
	Start(ctx context.Context, meta CommandMeta) (context.Context, trace.Span)

	// End ends the span with the pipeline outcome.
	End(span trace.Span, reason string, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) Start(ctx context.Context, meta CommandMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) End(span trace.Span, reason string, err error) {
	span.SetAttributes(attribute.String("querystats.outcome", reason))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
