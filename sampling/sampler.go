package sampling

import (
	"fmt"
	"math/rand/v2"
)

// Sampler admits or rejects one command.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Sample must not block.
type Sampler interface {
	Sample() bool
}

// Func adapts a function to Sampler.
type Func func() bool

// Sample calls f.
func (f Func) Sample() bool { return f() }

type constant bool

func (c constant) Sample() bool { return bool(c) }

// Always admits every command.
func Always() Sampler { return constant(true) }

// Never rejects every command.
func Never() Sampler { return constant(false) }

type ratio struct {
	p float64
}

func (r ratio) Sample() bool {
	return rand.Float64() < r.p
}

// Ratio admits each command independently with probability p.
func Ratio(p float64) (Sampler, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRatio, p)
	}
	switch p {
	case 0:
		return Never(), nil
	case 1:
		return Always(), nil
	}
	return ratio{p: p}, nil
}

type all []Sampler

func (a all) Sample() bool {
	for _, s := range a {
		if !s.Sample() {
			return false
		}
	}
	return true
}

// All admits a command only if every sampler admits it. Samplers are
// consulted in order and evaluation stops at the first rejection, so cheap
// samplers belong first and token-consuming ones last.
func All(samplers ...Sampler) Sampler {
	flat := make(all, 0, len(samplers))
	for _, s := range samplers {
		if s == nil {
			continue
		}
		if nested, ok := s.(all); ok {
			flat = append(flat, nested...)
			continue
		}
		flat = append(flat, s)
	}
	if len(flat) == 0 {
		return Always()
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return flat
}

var (
	_ Sampler = Func(nil)
	_ Sampler = constant(false)
	_ Sampler = ratio{}
	_ Sampler = all(nil)
)
