// Package core holds the error taxonomy shared by the registry, dispatcher
// and lifecycle services. Handlers map these to HTTP statuses; Conflict never
// escapes the store layer.
package core

import "errors"

var (
	// ErrNotFound unknown worker, job or campaign id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState the operation is not legal in the entity's current
	// state (e.g. ingesting a result for a non-running job).
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict an atomic update collided with a concurrent writer. Retried
	// internally; surfaces only after the retry budget is exhausted.
	ErrConflict = errors.New("transaction conflict")
)
