package store

import (
	"math"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonwraymond/querystats/key"
)

// Sample is the runtime data of one execution.
type Sample struct {
	ExecutionTime time.Duration
	DocsExamined  int64
	KeysExamined  int64
	DocsReturned  int64
}

// AggregatedMetric accumulates one numeric metric over executions.
type AggregatedMetric struct {
	Sum          int64
	Min          int64
	Max          int64
	SumOfSquares float64
}

func (m *AggregatedMetric) add(v int64, first bool) {
	if first {
		m.Min, m.Max = v, v
	} else {
		m.Min = min(m.Min, v)
		m.Max = max(m.Max, v)
	}
	m.Sum += v
	m.SumOfSquares += float64(v) * float64(v)
}

// Mean returns Sum divided by n, or zero when n is zero.
func (m AggregatedMetric) Mean(n int64) float64 {
	if n == 0 {
		return 0
	}
	return float64(m.Sum) / float64(n)
}

// StdDev returns the population standard deviation over n samples.
func (m AggregatedMetric) StdDev(n int64) float64 {
	if n == 0 {
		return 0
	}
	mean := m.Mean(n)
	v := m.SumOfSquares/float64(n) - mean*mean
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

func (m AggregatedMetric) document() bson.D {
	return bson.D{
		{Key: "sum", Value: m.Sum},
		{Key: "max", Value: m.Max},
		{Key: "min", Value: m.Min},
		{Key: "sumOfSquares", Value: m.SumOfSquares},
	}
}

// EntrySnapshot is a consistent copy of one entry.
type EntrySnapshot struct {
	ID        string
	Key       *key.QueryStatsKey
	Count     int64
	FirstSeen time.Time
	LastSeen  time.Time

	// LastExecution is the execution time of the most recent sample.
	LastExecution time.Duration

	ExecMicros   AggregatedMetric
	DocsExamined AggregatedMetric
	KeysExamined AggregatedMetric
	DocsReturned AggregatedMetric
}

// Document renders the snapshot in reporting form.
func (s EntrySnapshot) Document() bson.D {
	var k any
	if s.Key != nil {
		k = s.Key.Document()
	}
	return bson.D{
		{Key: "key", Value: k},
		{Key: "keyHash", Value: s.ID},
		{Key: "metrics", Value: bson.D{
			{Key: "lastExecutionMicros", Value: s.LastExecution.Microseconds()},
			{Key: "execCount", Value: s.Count},
			{Key: "totalExecMicros", Value: s.ExecMicros.document()},
			{Key: "docsExamined", Value: s.DocsExamined.document()},
			{Key: "keysExamined", Value: s.KeysExamined.document()},
			{Key: "docsReturned", Value: s.DocsReturned.document()},
			{Key: "firstSeenTimestamp", Value: s.FirstSeen.UTC()},
			{Key: "latestSeenTimestamp", Value: s.LastSeen.UTC()},
		}},
	}
}

// entry is the mutable record behind a key.
//
// Lock order: a shard mutex may be held while acquiring an entry mutex, never
// the reverse.
type entry struct {
	mu sync.Mutex
	// evicted is set under mu once the entry left its shard. Updaters that
	// observe it must retry against the shard.
	evicted bool

	id  string
	key *key.QueryStatsKey

	count         int64
	firstSeen     time.Time
	lastSeen      time.Time
	lastExecution time.Duration
	execMicros    AggregatedMetric
	docsExamined  AggregatedMetric
	keysExamined  AggregatedMetric
	docsReturned  AggregatedMetric
}

// merge folds a sample into the entry. Caller holds e.mu.
func (e *entry) merge(s Sample, now time.Time) {
	first := e.count == 0
	if first {
		e.firstSeen = now
	}
	e.count++
	e.lastSeen = now
	e.lastExecution = s.ExecutionTime
	e.execMicros.add(s.ExecutionTime.Microseconds(), first)
	e.docsExamined.add(s.DocsExamined, first)
	e.keysExamined.add(s.KeysExamined, first)
	e.docsReturned.add(s.DocsReturned, first)
}

// snapshot copies the entry. Caller holds e.mu.
func (e *entry) snapshot() EntrySnapshot {
	return EntrySnapshot{
		ID:            e.id,
		Key:           e.key,
		Count:         e.count,
		FirstSeen:     e.firstSeen,
		LastSeen:      e.lastSeen,
		LastExecution: e.lastExecution,
		ExecMicros:    e.execMicros,
		DocsExamined:  e.docsExamined,
		KeysExamined:  e.keysExamined,
		DocsReturned:  e.docsReturned,
	}
}
