package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist or, for
	// conditional updates, was not in the expected state.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint was violated.
	ErrConflict = errors.New("repository: conflict")
)
