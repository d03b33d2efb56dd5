package kv

import "errors"

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrInvalidArgument is returned when type, key, or value fails the
	// preconditions in Put/Get/Exists/Delete (empty, or containing '/',
	// a newline, or a control byte).
	ErrInvalidArgument = errors.New("kv: invalid argument")

	// ErrValueTooLarge is returned when a Put's value exceeds the
	// caller-configured maximum body size.
	ErrValueTooLarge = errors.New("kv: value exceeds maximum size")
)
