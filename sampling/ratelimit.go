package sampling

import (
	"fmt"

	"github.com/coder/quartz"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures a rate-limited sampler.
type RateLimitConfig struct {
	// Rate is the number of commands admitted per second.
	// Default: 100
	Rate float64

	// Burst is the maximum burst size.
	// Default: equal to Rate, at least 1.
	Burst int

	// Clock drives token refill. Default: quartz.NewReal().
	Clock quartz.Clock
}

// RateLimiter admits commands through a token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
	clock   quartz.Clock
}

// RateLimit creates a token bucket sampler.
func RateLimit(config RateLimitConfig) (*RateLimiter, error) {
	if config.Rate < 0 || config.Burst < 0 {
		return nil, fmt.Errorf("%w: rate %v burst %d", ErrInvalidRate, config.Rate, config.Burst)
	}
	// Apply defaults
	if config.Rate == 0 {
		config.Rate = 100
	}
	if config.Burst == 0 {
		config.Burst = max(1, int(config.Rate))
	}
	if config.Clock == nil {
		config.Clock = quartz.NewReal()
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		clock:   config.Clock,
	}, nil
}

// Sample takes a token if one is available.
func (rl *RateLimiter) Sample() bool {
	return rl.limiter.AllowN(rl.clock.Now(), 1)
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.TokensAt(rl.clock.Now())
}

// SetRate changes the rate and burst at runtime.
func (rl *RateLimiter) SetRate(r float64, burst int) {
	now := rl.clock.Now()
	rl.limiter.SetLimitAt(now, rate.Limit(r))
	rl.limiter.SetBurstAt(now, burst)
}

var _ Sampler = (*RateLimiter)(nil)
