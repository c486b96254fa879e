package observe

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumByReason(t *testing.T, rm metricdata.ResourceMetrics) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	found := findMetric(rm, MetricRecordDropped)
	if found == nil {
		return out
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("dropped is %T, want Sum[int64]", found.Data)
	}
	for _, dp := range sum.DataPoints {
		reason, _ := dp.Attributes.Value(attribute.Key("reason"))
		out[reason.AsString()] += dp.Value
	}
	return out
}

func TestMetrics_TotalCountsEveryOutcome(t *testing.T) {
	m, reader, _ := newTestMetrics(t)
	meta := CommandMeta{Command: "find", Namespace: "test.c"}
	ctx := context.Background()

	m.RecordOutcome(ctx, meta, ReasonRecorded, time.Millisecond)
	m.RecordOutcome(ctx, meta, "sampled_out", 0)
	m.RecordOutcome(ctx, meta, "schema_violation", time.Millisecond)

	rm := collect(t, reader)
	found := findMetric(rm, MetricRecordTotal)
	if found == nil {
		t.Fatalf("%s not found", MetricRecordTotal)
	}
	sum := found.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
		if v, ok := dp.Attributes.Value("command"); !ok || v.AsString() != "find" {
			t.Errorf("command attribute = %v", v)
		}
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}

func TestMetrics_DroppedByReason(t *testing.T) {
	m, reader, _ := newTestMetrics(t)
	meta := CommandMeta{Command: "find"}
	ctx := context.Background()

	m.RecordOutcome(ctx, meta, ReasonRecorded, 0)
	m.RecordOutcome(ctx, meta, "capacity_exceeded", 0)
	m.RecordOutcome(ctx, meta, "capacity_exceeded", 0)
	m.RecordOutcome(ctx, meta, "unrecognized_option", 0)

	got := sumByReason(t, collect(t, reader))
	want := map[string]int64{"capacity_exceeded": 2, "unrecognized_option": 1}
	if len(got) != len(want) {
		t.Fatalf("dropped = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("dropped[%s] = %d, want %d", k, got[k], v)
		}
	}
}

func TestMetrics_DurationHistogram(t *testing.T) {
	m, reader, _ := newTestMetrics(t)
	m.RecordOutcome(context.Background(), CommandMeta{Command: "find"}, ReasonRecorded, 1500*time.Microsecond)

	found := findMetric(collect(t, reader), MetricRecordDuration)
	if found == nil {
		t.Fatalf("%s not found", MetricRecordDuration)
	}
	hist := found.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected histogram %+v", hist.DataPoints)
	}
	if hist.DataPoints[0].Sum != 1.5 {
		t.Errorf("sum = %v, want 1.5", hist.DataPoints[0].Sum)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m, reader, _ := newTestMetrics(t)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.RecordOutcome(context.Background(), CommandMeta{Command: "find"}, ReasonRecorded, 0)
			}
		}()
	}
	wg.Wait()

	sum := findMetric(collect(t, reader), MetricRecordTotal).Data.(metricdata.Sum[int64])
	if sum.DataPoints[0].Value != 1000 {
		t.Errorf("total = %d, want 1000", sum.DataPoints[0].Value)
	}
}

func TestRegisterStoreGauge(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	entries := int64(7)
	reg, err := RegisterStoreGauge(mp.Meter("test"), func() int64 { return entries })
	if err != nil {
		t.Fatalf("RegisterStoreGauge() error = %v", err)
	}
	defer func() { _ = reg.Unregister() }()

	found := findMetric(collect(t, reader), MetricStoreEntries)
	if found == nil {
		t.Fatalf("%s not found", MetricStoreEntries)
	}
	gauge := found.Data.(metricdata.Gauge[int64])
	if gauge.DataPoints[0].Value != 7 {
		t.Errorf("gauge = %d, want 7", gauge.DataPoints[0].Value)
	}

	entries = 9
	gauge = findMetric(collect(t, reader), MetricStoreEntries).Data.(metricdata.Gauge[int64])
	if gauge.DataPoints[0].Value != 9 {
		t.Errorf("gauge = %d, want 9", gauge.DataPoints[0].Value)
	}
}
