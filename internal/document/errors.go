package document

import "errors"

var (
	// ErrNotFound is returned when a referenced document id does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited is returned when a client exhausted its budget for a scope.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrSink marks a notification transport failure. The whole dispatch batch fails with it.
	ErrSink = errors.New("notification delivery failed")
	// ErrStorage marks an unavailable store or a row that cannot be mapped.
	ErrStorage = errors.New("storage failure")
)
