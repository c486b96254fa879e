package recorder

import (
	"errors"

	"github.com/jonwraymond/querystats/classify"
	"github.com/jonwraymond/querystats/key"
	"github.com/jonwraymond/querystats/observe"
	"github.com/jonwraymond/querystats/shape"
	"github.com/jonwraymond/querystats/store"
)

// Reason says how one pass through the pipeline ended.
type Reason string

// Pipeline outcomes. Everything except ReasonRecorded is a drop.
const (
	ReasonRecorded           Reason = observe.ReasonRecorded
	ReasonSampledOut         Reason = "sampled_out"
	ReasonUnrecognizedOption Reason = "unrecognized_option"
	ReasonSchemaViolation    Reason = "schema_violation"
	ReasonUnsupported        Reason = "unsupported"
	ReasonCapacityExceeded   Reason = "capacity_exceeded"
	ReasonClosed             Reason = "closed"
	ReasonCommandFailed      Reason = "command_failed"
	ReasonInternal           Reason = "internal"
)

// Outcome is the result of recording one command.
type Outcome struct {
	Reason Reason
	// ID is the key's export identifier when a key was computed.
	ID string
	// Err is the underlying error of a drop, nil otherwise.
	Err error
}

// Recorded reports whether the sample reached the store.
func (o Outcome) Recorded() bool {
	return o.Reason == ReasonRecorded
}

// reasonFor maps a pipeline error to its drop reason.
func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, classify.ErrUnrecognizedOption):
		return ReasonUnrecognizedOption
	case errors.Is(err, classify.ErrUnknownCommand),
		errors.Is(err, shape.ErrUnsupportedOperator),
		errors.Is(err, shape.ErrNoShapifier):
		return ReasonUnsupported
	case errors.Is(err, key.ErrSchemaViolation),
		errors.Is(err, key.ErrInvalidRequest),
		errors.Is(err, classify.ErrInvalidOption),
		errors.Is(err, shape.ErrInvalidValue):
		return ReasonSchemaViolation
	case errors.Is(err, store.ErrCapacityExceeded):
		return ReasonCapacityExceeded
	case errors.Is(err, store.ErrClosed):
		return ReasonClosed
	default:
		return ReasonInternal
	}
}
