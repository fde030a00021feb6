package interfaces

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// status codes; services wrap them with context via fmt.Errorf and %w.
var (
	// ErrNotFound - the referenced record does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict - the operation collides with existing state
	// (duplicate URL, second active session, already-terminal session)
	ErrConflict = errors.New("conflict")

	// ErrInvalid - the input failed validation
	ErrInvalid = errors.New("invalid input")

	// ErrNotActive - the operation requires an active session
	ErrNotActive = errors.New("session not active")
)
