package store

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/coder/quartz"
)

// Defaults applied by New.
const (
	DefaultCapacity = 10_000
	DefaultShards   = 16
)

// Config configures a Store.
type Config struct {
	// Capacity is the total number of entries across all shards. It must
	// be at least Shards so that every shard can hold an entry.
	// Default: DefaultCapacity.
	Capacity int

	// Shards is the number of shards. Must be a power of two.
	// Default: DefaultShards.
	Shards int

	// MaxIdle removes entries not seen for this long during Sweep.
	// Zero disables idle expiry.
	MaxIdle time.Duration

	// SweepInterval is the period of Run. Default: one minute.
	SweepInterval time.Duration

	// Clock timestamps samples. Default: quartz.NewReal().
	Clock quartz.Clock

	// Exporter receives the final snapshot on Close. Optional.
	Exporter Exporter
}

func (c Config) withDefaults() Config {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Shards == 0 {
		c.Shards = DefaultShards
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	if c.Clock == nil {
		c.Clock = quartz.NewReal()
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.Shards <= 0 || bits.OnesCount(uint(c.Shards)) != 1 {
		return fmt.Errorf("%w: shards %d is not a power of two", ErrInvalidConfig, c.Shards)
	}
	if err := checkCapacity(c.Capacity, c.Shards); err != nil {
		return err
	}
	if c.MaxIdle < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}

// checkCapacity rejects a capacity that would leave some shard unable to
// hold any entry. Zero is allowed and drops every insert.
func checkCapacity(capacity, shards int) error {
	if capacity < 0 {
		return fmt.Errorf("%w: capacity %d", ErrInvalidConfig, capacity)
	}
	if capacity > 0 && capacity < shards {
		return fmt.Errorf("%w: capacity %d is below the shard count %d", ErrInvalidConfig, capacity, shards)
	}
	return nil
}

// shareOf returns the capacity of shard i when total is split over n shards.
// The remainder goes to the lowest shards.
func shareOf(total, n, i int) int {
	share := total / n
	if i < total%n {
		share++
	}
	return share
}
