package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/querystats/encoder"
	"github.com/jonwraymond/querystats/key"
	"github.com/jonwraymond/querystats/observe"
	"github.com/jonwraymond/querystats/sampling"
	"github.com/jonwraymond/querystats/store"
)

// Options configures a Recorder.
type Options struct {
	// Store receives the samples. Required.
	Store *store.Store

	// Assembler builds keys. Default: key.NewAssembler with Strict.
	Assembler *key.Assembler

	// Strict rejects commands with options unknown to the registry. Only
	// used when Assembler is nil.
	Strict bool

	// Sampler admits commands. Default: sampling.Always().
	Sampler sampling.Sampler

	// Breaker, when set, is consulted after Sampler and pauses recording
	// after repeated internal failures.
	Breaker *sampling.Breaker

	// Observer provides tracing, metrics and logging. Default: observe.Nop().
	Observer observe.Observer

	// Clock measures pipeline and command durations. Default: quartz.NewReal().
	Clock quartz.Clock
}

// Recorder runs commands through the query stats pipeline.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: Record never returns an error or panics; failures become
//     drop outcomes.
//   - Isolation: the key is built only from the command document and the
//     execution context; the sample only from runtime counters.
type Recorder struct {
	store     *store.Store
	assembler *key.Assembler
	sampler   sampling.Sampler
	breaker   *sampling.Breaker
	clock     quartz.Clock

	tracer  observe.Tracer
	metrics observe.Metrics
	logger  observe.Logger
	gauge   metric.Registration
}

// New creates a Recorder.
func New(opts Options) (*Recorder, error) {
	if opts.Store == nil {
		return nil, ErrNilStore
	}
	// Apply defaults
	if opts.Assembler == nil {
		a, err := key.NewAssembler(key.Options{Strict: opts.Strict})
		if err != nil {
			return nil, err
		}
		opts.Assembler = a
	}
	if opts.Sampler == nil {
		opts.Sampler = sampling.Always()
	}
	if opts.Observer == nil {
		opts.Observer = observe.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}

	metrics, err := observe.NewMetrics(opts.Observer.Meter())
	if err != nil {
		return nil, fmt.Errorf("recorder: metrics: %w", err)
	}
	st := opts.Store
	gauge, err := observe.RegisterStoreGauge(opts.Observer.Meter(), func() int64 { return int64(st.Len()) })
	if err != nil {
		return nil, fmt.Errorf("recorder: store gauge: %w", err)
	}

	sampler := opts.Sampler
	if opts.Breaker != nil {
		sampler = sampling.All(sampler, opts.Breaker)
	}

	return &Recorder{
		store:     opts.Store,
		assembler: opts.Assembler,
		sampler:   sampler,
		breaker:   opts.Breaker,
		clock:     opts.Clock,
		tracer:    observe.NewTracer(opts.Observer.Tracer()),
		metrics:   metrics,
		logger:    opts.Observer.Logger(),
		gauge:     gauge,
	}, nil
}

// Key computes the key and its canonical encoding for a request without
// touching the store.
func (r *Recorder) Key(req key.Request, ectx key.ExecContext) (*key.QueryStatsKey, []byte, error) {
	k, err := r.assembler.Assemble(req, ectx)
	if err != nil {
		return nil, nil, err
	}
	enc, err := encoder.Encode(k)
	if err != nil {
		return nil, nil, err
	}
	return k, enc, nil
}

// Record samples, keys and stores one executed command.
func (r *Recorder) Record(ctx context.Context, req key.Request, ectx key.ExecContext, sample store.Sample) Outcome {
	meta := commandMeta(req)
	start := r.clock.Now()
	ok, err := r.admit()
	if !ok && err == nil {
		r.metrics.RecordOutcome(ctx, meta, string(ReasonSampledOut), 0)
		return Outcome{Reason: ReasonSampledOut}
	}

	ctx, span := r.tracer.Start(ctx, meta)
	out := step{Outcome: Outcome{Reason: ReasonInternal, Err: err}}
	if err == nil {
		out = r.prepare(req, ectx)
	}
	if out.Reason == "" {
		out = r.insert(out.prepared, sample)
	}
	r.finish(ctx, span, meta, out.Outcome, r.clock.Since(start))
	return out.Outcome
}

// admit consults the sampler. A panicking sampler yields an ErrPanic error.
func (r *Recorder) admit() (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("%w: sampler: %v", ErrPanic, p)
		}
	}()
	return r.sampler.Sample(), nil
}

// prepared is a computed key ready for the store.
type prepared struct {
	key     *key.QueryStatsKey
	encoded []byte
	id      string
}

type step struct {
	Outcome
	prepared
}

// prepare computes the key. A zero Reason means success.
func (r *Recorder) prepare(req key.Request, ectx key.ExecContext) (s step) {
	defer func() {
		if p := recover(); p != nil {
			s = step{Outcome: Outcome{Reason: ReasonInternal, Err: fmt.Errorf("%w: %v", ErrPanic, p)}}
		}
	}()

	k, enc, err := r.Key(req, ectx)
	if err != nil {
		return step{Outcome: Outcome{Reason: reasonFor(err), Err: err}}
	}
	id := encoder.ID(k.Command, enc)
	return step{Outcome: Outcome{ID: id}, prepared: prepared{key: k, encoded: enc, id: id}}
}

// insert merges the sample into the store.
func (r *Recorder) insert(p prepared, sample store.Sample) (s step) {
	defer func() {
		if rec := recover(); rec != nil {
			s = step{Outcome: Outcome{Reason: ReasonInternal, ID: p.id, Err: fmt.Errorf("%w: %v", ErrPanic, rec)}}
		}
	}()

	if err := r.store.InsertOrUpdate(p.encoded, p.key, sample); err != nil {
		return step{Outcome: Outcome{Reason: reasonFor(err), ID: p.id, Err: err}}
	}
	return step{Outcome: Outcome{Reason: ReasonRecorded, ID: p.id}}
}

// finish emits telemetry for a sampled command.
func (r *Recorder) finish(ctx context.Context, span trace.Span, meta observe.CommandMeta, out Outcome, elapsed time.Duration) {
	switch {
	case r.breaker == nil:
	case out.Reason == ReasonCommandFailed:
		// Nothing was recorded, so the command says nothing about the pipeline.
		r.breaker.Release()
	default:
		r.breaker.Done(out.Reason == ReasonInternal)
	}
	r.tracer.End(span, string(out.Reason), out.Err)
	r.metrics.RecordOutcome(ctx, meta, string(out.Reason), elapsed)

	logger := r.logger.WithCommand(meta)
	fields := []observe.Field{
		{Key: "reason", Value: string(out.Reason)},
		{Key: "duration_us", Value: elapsed.Microseconds()},
	}
	if out.ID != "" {
		fields = append(fields, observe.Field{Key: "key_id", Value: out.ID})
	}
	if out.Err != nil {
		fields = append(fields, observe.Field{Key: "error", Value: out.Err})
	}

	switch out.Reason {
	case ReasonRecorded:
		logger.Debug(ctx, "query stats recorded", fields...)
	case ReasonInternal:
		logger.Error(ctx, "query stats pipeline failed", fields...)
	case ReasonCapacityExceeded, ReasonClosed, ReasonCommandFailed:
		logger.Debug(ctx, "query stats dropped", fields...)
	default:
		logger.Warn(ctx, "query stats dropped", fields...)
	}
}

// Close unregisters the store gauge and closes the store, flushing it to
// the store's exporter.
func (r *Recorder) Close(ctx context.Context) error {
	var errs []error
	if r.gauge != nil {
		if err := r.gauge.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("recorder: unregister gauge: %w", err))
		}
	}
	if err := r.store.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Store returns the store the recorder writes to.
func (r *Recorder) Store() *store.Store {
	return r.store
}

// commandMeta describes a request for telemetry. It reads only the target
// namespace, never option values.
func commandMeta(req key.Request) observe.CommandMeta {
	meta := observe.CommandMeta{Command: req.Command}
	var coll, db string
	for i, e := range req.Body {
		switch {
		case i == 0:
			coll, _ = e.Value.(string)
		case e.Key == "$db":
			db, _ = e.Value.(string)
		}
	}
	switch {
	case db != "" && coll != "":
		meta.Namespace = db + "." + coll
	case coll != "":
		meta.Namespace = coll
	}
	return meta
}
