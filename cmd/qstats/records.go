package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonwraymond/querystats/config"
	"github.com/jonwraymond/querystats/key"
	"github.com/jonwraymond/querystats/observe"
	"github.com/jonwraymond/querystats/recorder"
	"github.com/jonwraymond/querystats/sampling"
	"github.com/jonwraymond/querystats/store"
)

// maxLine bounds one Extended JSON line.
const maxLine = 16 << 20

// sampleRecord is one executed command with its runtime counters.
type sampleRecord struct {
	Command        bson.D `bson:"command"`
	CollectionType string `bson:"collectionType,omitempty"`
	Client         bson.D `bson:"client,omitempty"`
	ExecMicros     int64  `bson:"execMicros,omitempty"`
	DocsExamined   int64  `bson:"docsExamined,omitempty"`
	KeysExamined   int64  `bson:"keysExamined,omitempty"`
	DocsReturned   int64  `bson:"docsReturned,omitempty"`
}

func parseRecord(data []byte) (sampleRecord, error) {
	var rec sampleRecord
	if err := bson.UnmarshalExtJSON(data, false, &rec); err != nil {
		return sampleRecord{}, fmt.Errorf("parse record: %w", err)
	}
	if len(rec.Command) == 0 {
		return sampleRecord{}, errors.New("parse record: missing command")
	}
	return rec, nil
}

func (r sampleRecord) request() (key.Request, error) {
	return key.NewRequest(r.Command)
}

func (r sampleRecord) execContext() key.ExecContext {
	return key.ExecContext{
		CollectionType: key.CollectionType(r.CollectionType),
		Client:         r.Client,
	}
}

func (r sampleRecord) sample() store.Sample {
	return store.Sample{
		ExecutionTime: time.Duration(r.ExecMicros) * time.Microsecond,
		DocsExamined:  r.DocsExamined,
		KeysExamined:  r.KeysExamined,
		DocsReturned:  r.DocsReturned,
	}
}

// readLines calls fn for every non-empty line of r.
func readLines(r io.Reader, fn func(line int, data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	n := 0
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(n, sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// lineExporter writes each snapshot as one Extended JSON line.
type lineExporter struct {
	mu sync.Mutex
	w  io.Writer
}

func (e *lineExporter) Export(_ context.Context, entries []store.EntrySnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range entries {
		if err := writeExtJSON(e.w, s.Document()); err != nil {
			return err
		}
	}
	return nil
}

func writeExtJSON(w io.Writer, doc any) error {
	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return fmt.Errorf("marshal extended json: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// pipeline is a recorder built from a config.
type pipeline struct {
	recorder *recorder.Recorder
	store    *store.Store
	breaker  *sampling.Breaker
}

func newPipeline(cfg config.Config, obs observe.Observer, exporter store.Exporter, clock quartz.Clock) (*pipeline, error) {
	sc := cfg.StoreOptions(clock)
	sc.Exporter = exporter
	st, err := store.New(sc)
	if err != nil {
		return nil, err
	}
	sampler, err := cfg.Sampler(clock)
	if err != nil {
		return nil, err
	}
	logger := obs.Logger()
	breaker := cfg.Breaker(clock, func(from, to sampling.State) {
		logger.Warn(context.Background(), "query stats breaker state changed",
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()})
	})

	opts := recorder.Options{
		Store:    st,
		Strict:   cfg.Strict,
		Sampler:  sampler,
		Breaker:  breaker,
		Observer: obs,
		Clock:    clock,
	}
	rec, err := recorder.New(opts)
	if err != nil {
		return nil, err
	}
	return &pipeline{recorder: rec, store: st, breaker: breaker}, nil
}
