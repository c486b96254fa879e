package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/querystats/sampling"
	"github.com/jonwraymond/querystats/store"
)

// StoreCheckerConfig configures a StoreChecker.
type StoreCheckerConfig struct {
	// MaxDropRatio is the share of store writes that may be dropped before
	// the store is reported degraded. Value should be between 0 and 1.
	// Default: 0.01
	MaxDropRatio float64
}

// StoreChecker reports the health of a query stats store.
//
// The store is unhealthy once closed and degraded when it drops more than
// MaxDropRatio of its writes. A full store is healthy: eviction is expected.
type StoreChecker struct {
	store  *store.Store
	config StoreCheckerConfig
}

// NewStoreChecker creates a StoreChecker for s.
func NewStoreChecker(s *store.Store, config StoreCheckerConfig) *StoreChecker {
	if config.MaxDropRatio <= 0 || config.MaxDropRatio >= 1 {
		config.MaxDropRatio = 0.01
	}
	return &StoreChecker{store: s, config: config}
}

// Name returns "store".
func (c *StoreChecker) Name() string { return "store" }

// Check reports the store's health.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	st := c.store.Stats()
	writes := st.Inserts + st.Updates + st.Drops
	var dropRatio float64
	if writes > 0 {
		dropRatio = float64(st.Drops) / float64(writes)
	}
	details := map[string]any{
		"entries":    st.Entries,
		"capacity":   st.Capacity,
		"inserts":    st.Inserts,
		"updates":    st.Updates,
		"evictions":  st.Evictions,
		"drops":      st.Drops,
		"drop_ratio": dropRatio,
	}

	switch {
	case c.store.Closed():
		return Unhealthy("store closed", ErrStoreClosed).WithDetails(details)
	case st.Capacity == 0:
		return Degraded("store capacity is zero").WithDetails(details)
	case dropRatio > c.config.MaxDropRatio:
		return Degraded(fmt.Sprintf("store dropping %.1f%% of writes", dropRatio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%d of %d entries", st.Entries, st.Capacity)).WithDetails(details)
	}
}

// BreakerChecker reports the state of the recording breaker.
type BreakerChecker struct {
	breaker *sampling.Breaker
}

// NewBreakerChecker creates a BreakerChecker for b.
func NewBreakerChecker(b *sampling.Breaker) *BreakerChecker {
	return &BreakerChecker{breaker: b}
}

// Name returns "breaker".
func (c *BreakerChecker) Name() string { return "breaker" }

// Check reports the breaker degraded unless it is closed.
func (c *BreakerChecker) Check(context.Context) Result {
	state := c.breaker.State()
	details := map[string]any{"state": state.String()}
	if state != sampling.StateClosed {
		return Degraded("recording paused after internal failures").WithDetails(details)
	}
	return Healthy("recording").WithDetails(details)
}
