package encoder

import "errors"

var (
	// ErrNilKey is returned when encoding a nil key.
	ErrNilKey = errors.New("encoder: nil key")

	// ErrUnencodable is returned when a constant has no BSON representation.
	ErrUnencodable = errors.New("encoder: unencodable constant")
)
