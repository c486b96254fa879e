package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricRecordTotal    = "querystats.record.total"
	MetricRecordDropped  = "querystats.record.dropped"
	MetricRecordDuration = "querystats.record.duration_ms"
	MetricStoreEntries   = "querystats.store.entries"
)

// ReasonRecorded is the outcome of a sample merged into the store. Every
// other reason counts as a drop.
const ReasonRecorded = "recorded"

// Metrics records pipeline outcomes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOutcome records one pass through the pipeline and how it ended.
	RecordOutcome(ctx context.Context, meta CommandMeta, reason string, duration time.Duration)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	droppedCount metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		MetricRecordTotal,
		metric.WithDescription("Commands that entered the query stats pipeline"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	droppedCount, err := meter.Int64Counter(
		MetricRecordDropped,
		metric.WithDescription("Commands whose statistics were not recorded, by reason"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricRecordDuration,
		metric.WithDescription("Time spent computing and recording a query stats key"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		droppedCount: droppedCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordOutcome(ctx context.Context, meta CommandMeta, reason string, duration time.Duration) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if reason != ReasonRecorded {
		attrs := append(meta.attributes(), attribute.String("reason", reason))
		m.droppedCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// StoreGauge reports the current number of store entries.
type StoreGauge func() int64

// RegisterStoreGauge registers the querystats.store.entries gauge on meter.
// The returned registration should be unregistered when the store closes.
func RegisterStoreGauge(meter metric.Meter, entries StoreGauge) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge(
		MetricStoreEntries,
		metric.WithDescription("Entries held by the query stats store"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, entries())
		return nil
	}, gauge)
}

type nopMetrics struct{}

// NopMetrics returns Metrics that discard everything.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordOutcome(context.Context, CommandMeta, string, time.Duration) {}
