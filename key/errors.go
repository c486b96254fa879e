package key

import "errors"

// Sentinel errors for key assembly.
var (
	// ErrSchemaViolation indicates a key could not be built with exactly the
	// field set its schema requires.
	ErrSchemaViolation = errors.New("key: schema violation")

	// ErrInvalidRequest indicates a request without a command document.
	ErrInvalidRequest = errors.New("key: invalid request")
)
