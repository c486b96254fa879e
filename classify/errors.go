package classify

import "errors"

// Sentinel errors for classification.
var (
	// ErrUnrecognizedOption indicates a command option has no registry entry.
	ErrUnrecognizedOption = errors.New("classify: unrecognized option")

	// ErrUnknownCommand indicates no schema is registered for a command type.
	ErrUnknownCommand = errors.New("classify: unknown command")

	// ErrInvalidSchema indicates a schema table is inconsistent.
	ErrInvalidSchema = errors.New("classify: invalid schema")
)

// ErrInvalidOption indicates a recognized option appears in an unusable form,
// such as more than once.
var ErrInvalidOption = errors.New("classify: invalid option")
