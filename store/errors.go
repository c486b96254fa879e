package store

import "errors"

// Sentinel errors for store operations. Callers treat every one of them as
// "sample dropped".
var (
	// ErrCapacityExceeded indicates no slot could be freed for a new entry.
	ErrCapacityExceeded = errors.New("store: capacity exceeded")

	// ErrClosed indicates the store no longer accepts samples.
	ErrClosed = errors.New("store: closed")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("store: invalid config")

	// ErrEmptyKey indicates an empty encoded key.
	ErrEmptyKey = errors.New("store: empty key")
)
