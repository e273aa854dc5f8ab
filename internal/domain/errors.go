package domain

import "errors"

var (
	// ErrValidation marks input that the caller must fix before retrying.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup for an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a write rejected by a uniqueness constraint.
	ErrConflict = errors.New("conflict")

	// ErrPendingRequest marks an idempotency key whose first attempt is
	// still in flight. Callers should retry shortly, not fail hard.
	ErrPendingRequest = errors.New("request already being processed")
)
