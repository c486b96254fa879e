package sampling

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// State is the state of a Breaker.
type State int

const (
	// StateClosed means recording operates normally.
	StateClosed State = iota
	// StateOpen means recording is paused.
	StateOpen
	// StateHalfOpen means a limited number of probe commands are admitted.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that pause recording.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long recording stays paused before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxProbes is the number of commands admitted while probing.
	// Default: 1
	HalfOpenMaxProbes int

	// OnStateChange is called with the lock held when the state changes.
	// It must not call back into the Breaker.
	OnStateChange func(from, to State)

	// Clock defaults to quartz.NewReal().
	Clock quartz.Clock
}

// Breaker pauses sampling after repeated recording failures. The recorder
// reports the result of each admitted command through Done.
type Breaker struct {
	config BreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int
}

// NewBreaker creates a Breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	// Apply defaults
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxProbes <= 0 {
		config.HalfOpenMaxProbes = 1
	}
	if config.Clock == nil {
		config.Clock = quartz.NewReal()
	}
	return &Breaker{config: config}
}

// Sample admits a command unless recording is paused.
func (b *Breaker) Sample() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.probes >= b.config.HalfOpenMaxProbes {
			return false
		}
		b.probes++
	}
	return true
}

// Done reports whether recording an admitted command failed internally.
func (b *Breaker) Done(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		b.lastFailure = b.config.Clock.Now()
		if b.failures >= b.config.MaxFailures {
			b.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			b.lastFailure = b.config.Clock.Now()
			b.setStateLocked(StateOpen)
			return
		}
		b.failures = 0
		b.setStateLocked(StateClosed)
	}
}

// Release gives back the probe slot of an admitted command whose recording
// produced no verdict. The state is unchanged.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.setStateLocked(StateClosed)
}

func (b *Breaker) currentStateLocked() State {
	if b.state == StateOpen && b.config.Clock.Since(b.lastFailure) >= b.config.ResetTimeout {
		b.setStateLocked(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) setStateLocked(to State) {
	from := b.state
	b.state = to
	if to == StateHalfOpen {
		b.probes = 0
	}
	if from != to && b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}

var _ Sampler = (*Breaker)(nil)
