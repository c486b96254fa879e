package recorder

import (
	"context"

	"github.com/jonwraymond/querystats/key"
	"github.com/jonwraymond/querystats/store"
)

// ExecuteFunc executes one command and returns its result.
type ExecuteFunc func(ctx context.Context, req key.Request) (any, error)

// Counters is implemented by command results that report how much work the
// execution did. Results that do not implement it record zero counters.
type Counters interface {
	QueryStatsCounters() (docsExamined, keysExamined, docsReturned int64)
}

// ExecContextFunc resolves the execution context of a request.
type ExecContextFunc func(ctx context.Context, req key.Request) key.ExecContext

// Middleware records every command executed through the wrapped function.
//
// Contract:
//   - Concurrency: Wrap returns a function safe for concurrent use.
//   - Errors: the command's result and error are returned unchanged;
//     recording failures are never visible to the caller.
//   - Ordering: the key is computed before the command executes.
type Middleware struct {
	recorder    *Recorder
	execContext ExecContextFunc
}

// NewMiddleware creates a Middleware. A nil execContext uses the zero
// ExecContext for every request.
func NewMiddleware(r *Recorder, execContext ExecContextFunc) *Middleware {
	if execContext == nil {
		execContext = func(context.Context, key.Request) key.ExecContext { return key.ExecContext{} }
	}
	return &Middleware{recorder: r, execContext: execContext}
}

// Wrap wraps fn with query stats recording.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	r := m.recorder
	return func(ctx context.Context, req key.Request) (any, error) {
		meta := commandMeta(req)
		ok, admitErr := r.admit()
		if !ok && admitErr == nil {
			r.metrics.RecordOutcome(ctx, meta, string(ReasonSampledOut), 0)
			return fn(ctx, req)
		}

		spanCtx, span := r.tracer.Start(ctx, meta)
		keyStart := r.clock.Now()
		p := step{Outcome: Outcome{Reason: ReasonInternal, Err: admitErr}}
		if admitErr == nil {
			p = r.prepare(req, m.execContext(ctx, req))
		}
		keyElapsed := r.clock.Since(keyStart)

		start := r.clock.Now()
		result, err := fn(ctx, req)
		elapsed := r.clock.Since(start)

		out := p
		switch {
		case p.Reason != "":
		case err != nil:
			out.Outcome = Outcome{Reason: ReasonCommandFailed, ID: p.id, Err: err}
		default:
			sample := store.Sample{ExecutionTime: elapsed}
			if c, ok := result.(Counters); ok {
				sample.DocsExamined, sample.KeysExamined, sample.DocsReturned = c.QueryStatsCounters()
			}
			insertStart := r.clock.Now()
			out = r.insert(p.prepared, sample)
			keyElapsed += r.clock.Since(insertStart)
		}
		r.finish(spanCtx, span, meta, out.Outcome, keyElapsed)

		return result, err
	}
}
