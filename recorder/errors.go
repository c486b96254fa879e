package recorder

import "errors"

var (
	// ErrNilStore is returned by New when Options.Store is nil.
	ErrNilStore = errors.New("recorder: store is required")

	// ErrPanic wraps a panic recovered inside the pipeline.
	ErrPanic = errors.New("recorder: panic in pipeline")
)
