package health

import (
	"context"
	"time"
)

// Status is the health of one component.
type Status int

const (
	// StatusHealthy means the component records every admitted sample.
	StatusHealthy Status = iota
	// StatusDegraded means the component works but is losing samples.
	StatusDegraded
	// StatusUnhealthy means the component records nothing.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one check.
type Result struct {
	Status  Status
	Message string

	// Details carries the numbers behind the status.
	Details map[string]any

	// Duration is set by the Aggregator.
	Duration time.Duration

	Error error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err}
}

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker reports the health of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to a Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a named CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the checker's name.
func (f *CheckerFunc) Name() string { return f.name }

// Check calls the function.
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
