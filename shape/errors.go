package shape

import "errors"

// Sentinel errors for shapification.
var (
	// ErrUnsupportedOperator indicates an operator the shapifier has no rule for.
	ErrUnsupportedOperator = errors.New("shape: unsupported operator")

	// ErrInvalidValue indicates an option value of the wrong form.
	ErrInvalidValue = errors.New("shape: invalid value")

	// ErrNoShapifier indicates no field table exists for a command or field.
	ErrNoShapifier = errors.New("shape: no shapifier")
)
