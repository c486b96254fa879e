package observe

import (
	"context"
	"io"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// BenchmarkLogger_Info measures a JSON log line with fields.
func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard).WithCommand(CommandMeta{Command: "find"})
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "recorded", Field{Key: "reason", Value: "recorded"})
	}
}

// BenchmarkLogger_LevelFiltering measures the cost of a filtered log call.
func BenchmarkLogger_LevelFiltering(b *testing.B) {
	logger := NewLoggerWithWriter("error", io.Discard)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug(ctx, "filtered")
	}
}

// BenchmarkMetrics_RecordOutcome measures outcome recording.
func BenchmarkMetrics_RecordOutcome(b *testing.B) {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, _ := NewMetrics(mp.Meter("bench"))
	meta := CommandMeta{Command: "find"}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordOutcome(ctx, meta, ReasonRecorded, time.Millisecond)
	}
}

// BenchmarkTracer_StartEnd measures a span round trip on a no-op tracer.
func BenchmarkTracer_StartEnd(b *testing.B) {
	tr := NewTracer(tracenoop.NewTracerProvider().Tracer("bench"))
	meta := CommandMeta{Command: "find"}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tr.Start(ctx, meta)
		tr.End(span, ReasonRecorded, nil)
	}
}
