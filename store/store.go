package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"
	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/querystats/encoder"
	"github.com/jonwraymond/querystats/key"
)

const (
	// maxEvictAttempts bounds how many pinned victims one insert skips.
	maxEvictAttempts = 8
	// maxUpdateRetries bounds how often an update chases an evicted entry.
	maxUpdateRetries = 8
)

// Store is a sharded, capacity-bounded aggregation cache.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Bound: no shard ever holds more entries than its share of Capacity.
//   - Updates: a sample is either merged into exactly one entry or the call
//     returns an error; an update racing with eviction is retried.
type Store struct {
	cfg    Config
	clock  quartz.Clock
	shards []*shard
	mask   uint64

	// resizeMu serializes Resize; it is never held by the insert path.
	resizeMu sync.Mutex
	capacity atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	inserts   atomic.Int64
	updates   atomic.Int64
	evictions atomic.Int64
	drops     atomic.Int64
}

type shard struct {
	mu       sync.Mutex
	entries  *lru.LRU[string, *entry]
	capacity int
}

// Stats is a point-in-time view of store counters.
type Stats struct {
	Entries   int
	Capacity  int
	Inserts   int64
	Updates   int64
	Evictions int64
	Drops     int64
}

// New creates a Store. Zero config fields take their defaults.
func New(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:    cfg,
		clock:  cfg.Clock,
		shards: make([]*shard, cfg.Shards),
		mask:   uint64(cfg.Shards - 1),
	}
	for i := range s.shards {
		// The list itself is unbounded; shard capacity is enforced by
		// evictLocked so that pinned entries are never dropped.
		entries, err := lru.NewLRU[string, *entry](math.MaxInt32, nil)
		if err != nil {
			return nil, fmt.Errorf("store: create shard: %w", err)
		}
		s.shards[i] = &shard{entries: entries, capacity: shareOf(cfg.Capacity, cfg.Shards, i)}
	}
	s.capacity.Store(int64(cfg.Capacity))
	return s, nil
}

func (s *Store) shardFor(encoded []byte) *shard {
	return s.shards[encoder.Hash(encoded)&s.mask]
}

// InsertOrUpdate merges a sample into the entry for encoded, creating the
// entry (and evicting if needed) when it does not exist. k is stored with a
// new entry and must be the key encoded produced.
func (s *Store) InsertOrUpdate(encoded []byte, k *key.QueryStatsKey, sample Sample) error {
	if len(encoded) == 0 {
		s.drops.Add(1)
		return ErrEmptyKey
	}
	sh := s.shardFor(encoded)
	id := string(encoded)

	for range maxUpdateRetries {
		if s.closed.Load() {
			s.drops.Add(1)
			return ErrClosed
		}
		e, created, err := s.lookup(sh, id, k)
		if err != nil {
			s.drops.Add(1)
			return err
		}

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		e.merge(sample, s.clock.Now())
		e.mu.Unlock()

		if created {
			s.inserts.Add(1)
		} else {
			s.updates.Add(1)
		}
		return nil
	}
	s.drops.Add(1)
	return fmt.Errorf("%w: entry evicted during update", ErrCapacityExceeded)
}

// lookup returns the entry for id, inserting a new one if needed.
func (s *Store) lookup(sh *shard, id string, k *key.QueryStatsKey) (*entry, bool, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.entries.Get(id); ok {
		return e, false, nil
	}
	if k == nil {
		return nil, false, fmt.Errorf("%w: new entry needs its key", ErrEmptyKey)
	}
	for sh.entries.Len() >= sh.capacity {
		if sh.capacity == 0 || !s.evictLocked(sh, false) {
			return nil, false, ErrCapacityExceeded
		}
	}
	e := &entry{id: encoder.ID(k.Command, []byte(id)), key: k}
	sh.entries.Add(id, e)
	return e, true, nil
}

// evictLocked removes the least recently used entry of sh. Without block,
// entries whose lock is held by an updater are moved to the front and the
// next oldest is tried. Caller holds sh.mu.
func (s *Store) evictLocked(sh *shard, block bool) bool {
	attempts := min(maxEvictAttempts, sh.entries.Len())
	for range attempts {
		id, e, ok := sh.entries.GetOldest()
		if !ok {
			return false
		}
		if block {
			e.mu.Lock()
		} else if !e.mu.TryLock() {
			sh.entries.Get(id)
			continue
		}
		e.evicted = true
		e.mu.Unlock()
		sh.entries.Remove(id)
		s.evictions.Add(1)
		return true
	}
	return false
}

// Get returns a snapshot of the entry for encoded.
func (s *Store) Get(encoded []byte) (EntrySnapshot, bool) {
	sh := s.shardFor(encoded)
	sh.mu.Lock()
	e, ok := sh.entries.Peek(string(encoded))
	sh.mu.Unlock()
	if !ok {
		return EntrySnapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return EntrySnapshot{}, false
	}
	return e.snapshot(), true
}

// Snapshot yields a consistent copy of every entry. Each entry is copied
// under its own lock; the sequence as a whole is not atomic.
func (s *Store) Snapshot() iter.Seq[EntrySnapshot] {
	return func(yield func(EntrySnapshot) bool) {
		for _, sh := range s.shards {
			sh.mu.Lock()
			entries := sh.entries.Values()
			sh.mu.Unlock()

			for _, e := range entries {
				e.mu.Lock()
				if e.evicted || e.count == 0 {
					e.mu.Unlock()
					continue
				}
				snap := e.snapshot()
				e.mu.Unlock()
				if !yield(snap) {
					return
				}
			}
		}
	}
}

// Entries collects Snapshot into a slice.
func (s *Store) Entries() []EntrySnapshot {
	out := make([]EntrySnapshot, 0, s.Len())
	for snap := range s.Snapshot() {
		out = append(out, snap)
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	n := 0
	for _, l := range s.ShardLens() {
		n += l
	}
	return n
}

// ShardLens returns the number of entries per shard.
func (s *Store) ShardLens() []int {
	out := make([]int, len(s.shards))
	for i, sh := range s.shards {
		sh.mu.Lock()
		out[i] = sh.entries.Len()
		sh.mu.Unlock()
	}
	return out
}

// Capacity returns the current total capacity.
func (s *Store) Capacity() int {
	return int(s.capacity.Load())
}

// Stats returns the store counters.
func (s *Store) Stats() Stats {
	return Stats{
		Entries:   s.Len(),
		Capacity:  s.Capacity(),
		Inserts:   s.inserts.Load(),
		Updates:   s.updates.Load(),
		Evictions: s.evictions.Load(),
		Drops:     s.drops.Load(),
	}
}

// Resize changes the total capacity. Shrinking evicts least recently used
// entries, waiting for in-flight updates of the victims to finish. A capacity
// of zero empties the store and drops every later insert; any other capacity
// must be at least the shard count.
func (s *Store) Resize(capacity int) error {
	if err := checkCapacity(capacity, len(s.shards)); err != nil {
		return err
	}
	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()

	for i, sh := range s.shards {
		sh.mu.Lock()
		sh.capacity = shareOf(capacity, len(s.shards), i)
		for sh.entries.Len() > sh.capacity {
			if !s.evictLocked(sh, true) {
				break
			}
		}
		sh.mu.Unlock()
	}
	s.capacity.Store(int64(capacity))
	return nil
}

// Sweep removes entries idle for longer than MaxIdle. It returns the number
// of entries removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	if s.cfg.MaxIdle <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.cfg.MaxIdle)

	var removed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for _, sh := range s.shards {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sh.mu.Lock()
			defer sh.mu.Unlock()
			for _, id := range sh.entries.Keys() {
				e, _ := sh.entries.Peek(id)
				if !e.mu.TryLock() {
					continue
				}
				idle := e.lastSeen.Before(cutoff)
				if idle {
					e.evicted = true
				}
				e.mu.Unlock()
				if idle {
					sh.entries.Remove(id)
					removed.Add(1)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	n := int(removed.Load())
	s.evictions.Add(int64(n))
	return n, err
}

// Run sweeps the store every SweepInterval until ctx is canceled.
func (s *Store) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.SweepInterval, "store", "sweep")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
	}
}

// Reset removes every entry.
func (s *Store) Reset() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, e := range sh.entries.Values() {
			e.mu.Lock()
			e.evicted = true
			e.mu.Unlock()
		}
		sh.entries.Purge()
		sh.mu.Unlock()
	}
}

// Close stops accepting samples and hands a final snapshot to the
// configured Exporter. Close is idempotent; later calls return the first
// result.
func (s *Store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.cfg.Exporter == nil {
			return
		}
		if err := s.cfg.Exporter.Export(ctx, s.Entries()); err != nil {
			s.closeErr = fmt.Errorf("store: export on close: %w", err)
		}
	})
	return s.closeErr
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	return s.closed.Load()
}
