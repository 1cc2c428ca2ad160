package document

import "fmt"

// State is the derived, never persisted, expiry state of a document.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
)

// StateOf reports whether a document expiring on expiry is expired as of today.
// A document expiring today is still active.
func StateOf(expiry, today Date) State {
	if expiry.Before(today) {
		return StateExpired
	}
	return StateActive
}

// ParseState validates a state filter value.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateActive, StateExpired:
		return State(s), nil
	}
	return "", fmt.Errorf("%w: state must be %q or %q", ErrValidation, StateActive, StateExpired)
}
