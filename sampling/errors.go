package sampling

import "errors"

// Sentinel errors for sampler configuration.
var (
	// ErrInvalidRatio indicates a ratio outside [0, 1].
	ErrInvalidRatio = errors.New("sampling: ratio must be between 0 and 1")

	// ErrInvalidRate indicates a negative rate or burst.
	ErrInvalidRate = errors.New("sampling: rate and burst must not be negative")
)
