package domain

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist in the caller's company.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when an optimistic version check fails.
	ErrVersionConflict = errors.New("version conflict")
	// ErrImmutable is returned when a mutation targets a posted journal entry.
	ErrImmutable = errors.New("entity is immutable")
	// ErrEncryption is returned when a sealed column cannot be encrypted or decrypted.
	ErrEncryption = errors.New("field encryption failed")
)

// ConflictError carries the server copy of an entity whose version did not
// match the client's expectation.
type ConflictError struct {
	Entity        EntityType
	ServerID      string
	ClientVersion int64
	ServerVersion int64
	ServerData    any
}

func (e *ConflictError) Error() string {
	return "version conflict: " + string(e.Entity) + " " + e.ServerID + " was modified on the server"
}

func (e *ConflictError) Unwrap() error {
	return ErrVersionConflict
}

// ValidationError wraps a payload that failed decoding or validation.
type ValidationError struct {
	Entity EntityType
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + string(e.Entity) + " payload: " + e.Reason
}
