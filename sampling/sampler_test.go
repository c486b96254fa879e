package sampling

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
)

func TestAlwaysNever(t *testing.T) {
	for i := 0; i < 10; i++ {
		if !Always().Sample() {
			t.Fatal("Always().Sample() = false")
		}
		if Never().Sample() {
			t.Fatal("Never().Sample() = true")
		}
	}
}

func TestRatio_Bounds(t *testing.T) {
	for _, p := range []float64{-0.1, 1.5} {
		if _, err := Ratio(p); !errors.Is(err, ErrInvalidRatio) {
			t.Errorf("Ratio(%v) error = %v, want ErrInvalidRatio", p, err)
		}
	}
	zero, _ := Ratio(0)
	one, _ := Ratio(1)
	for i := 0; i < 100; i++ {
		if zero.Sample() {
			t.Fatal("Ratio(0) admitted a command")
		}
		if !one.Sample() {
			t.Fatal("Ratio(1) rejected a command")
		}
	}
}

func TestRatio_Uniform(t *testing.T) {
	s, err := Ratio(0.25)
	if err != nil {
		t.Fatalf("Ratio() error = %v", err)
	}
	const n = 100_000
	admitted := 0
	for range n {
		if s.Sample() {
			admitted++
		}
	}
	// Mean 25000, standard deviation about 137; allow well beyond 5 sigma.
	if admitted < 24_000 || admitted > 26_000 {
		t.Errorf("admitted %d of %d, want about 25000", admitted, n)
	}
}

func TestAll(t *testing.T) {
	var calls atomic.Int32
	counting := Func(func() bool { calls.Add(1); return true })

	if !All().Sample() {
		t.Error("All() with no samplers should admit")
	}
	if !All(Always(), counting).Sample() {
		t.Error("All(Always, true) should admit")
	}
	if All(Never(), counting).Sample() {
		t.Error("All(Never, ...) should reject")
	}
	if calls.Load() != 1 {
		t.Errorf("counting sampler called %d times, want 1 (short-circuit)", calls.Load())
	}
	if s := All(nil, Never()); s.Sample() {
		t.Error("nil samplers should be skipped")
	}
	nested := All(All(Always(), Always()), Never())
	if nested.Sample() {
		t.Error("nested All should reject")
	}
}

func TestRateLimit_Burst(t *testing.T) {
	clock := quartz.NewMock(t)
	rl, err := RateLimit(RateLimitConfig{Rate: 10, Burst: 5, Clock: clock})
	if err != nil {
		t.Fatalf("RateLimit() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if !rl.Sample() {
			t.Errorf("Sample() = false on attempt %d, want true", i)
		}
	}
	if rl.Sample() {
		t.Error("Sample() = true after burst exhausted, want false")
	}

	clock.Advance(100 * time.Millisecond)
	if !rl.Sample() {
		t.Error("Sample() = false after refill of one token")
	}
	if rl.Sample() {
		t.Error("Sample() = true, only one token should have been refilled")
	}
}

func TestRateLimit_Defaults(t *testing.T) {
	clock := quartz.NewMock(t)
	rl, err := RateLimit(RateLimitConfig{Clock: clock})
	if err != nil {
		t.Fatalf("RateLimit() error = %v", err)
	}
	if got := rl.Tokens(); got != 100 {
		t.Errorf("Tokens() = %v, want 100", got)
	}
	if _, err := RateLimit(RateLimitConfig{Rate: -1}); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("RateLimit(-1) error = %v, want ErrInvalidRate", err)
	}
}

func TestRateLimit_SetRate(t *testing.T) {
	clock := quartz.NewMock(t)
	rl, _ := RateLimit(RateLimitConfig{Rate: 1, Burst: 1, Clock: clock})
	rl.Sample()
	rl.SetRate(0, 0)
	clock.Advance(time.Hour)
	if rl.Sample() {
		t.Error("Sample() = true with zero rate and burst")
	}
}

func TestRateLimit_Concurrent(t *testing.T) {
	clock := quartz.NewMock(t)
	rl, _ := RateLimit(RateLimitConfig{Rate: 1, Burst: 50, Clock: clock})

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if rl.Sample() {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	if admitted.Load() != 50 {
		t.Errorf("admitted %d, want exactly the burst of 50", admitted.Load())
	}
}
