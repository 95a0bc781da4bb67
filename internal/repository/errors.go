package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleState is returned when a guarded status transition matched
	// no row because the booking was no longer in the expected prior
	// state.
	ErrStaleState = errors.New("booking not in expected state")
)
