package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the platform's error taxonomy. Handlers map these
// to HTTP status codes; services wrap them with context via fmt.Errorf("%w").
var (
	// ErrDenied covers every scope or role violation. It is returned
	// identically whether the target row does not exist or exists outside
	// the caller's scope, so the API never leaks existence.
	ErrDenied = errors.New("access denied")

	// ErrInvalidInput marks malformed filters or payloads caught before any
	// repository call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable marks a repository or cache backing store that could
	// not be reached. Retryable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrConflict marks a state-machine violation, e.g. cancelling a
	// COMPLETED transaction.
	ErrConflict = errors.New("conflict")
)

// Conflict carries the current valid state back to the caller so it can
// reconcile before retrying.
type Conflict struct {
	Current string
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("conflict: current state is %s", c.Current)
}

func (c *Conflict) Unwrap() error { return ErrConflict }

// NewConflict builds a Conflict error for the given current state.
func NewConflict(current string) error {
	return &Conflict{Current: current}
}

// Deniedf wraps ErrDenied with an internal reason. The reason ends up in
// audit records only; the caller always sees the uniform generic message.
func Deniedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDenied, fmt.Sprintf(format, args...))
}

// Invalidf wraps ErrInvalidInput with detail that is safe to show.
func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
