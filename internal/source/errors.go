package source

// This file defines the structured error taxonomy connectors funnel
// their failures into. The dispatcher serializes these into tool
// results; they never escape as raw Go errors into the model loop.

import (
	"errors"
	"fmt"
)

// UnavailableError indicates the source itself could not be reached:
// export tool missing or denied, network unreachable, timeout. The
// agent sees a structured failure and decides whether to retry.
type UnavailableError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnavailableError) Unwrap() error { return e.Err }

// AuthExpiredError indicates the source rejected our credentials
// (401/403 on a remote fetch). Re-authentication is an external,
// human-driven step; the run reports it rather than attempting it.
type AuthExpiredError struct {
	Source string
}

// Error implements the error interface.
func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("source %s needs re-authentication", e.Source)
}

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var target *UnavailableError
	return errors.As(err, &target)
}

// IsAuthExpired reports whether err is (or wraps) an AuthExpiredError.
func IsAuthExpired(err error) bool {
	var target *AuthExpiredError
	return errors.As(err, &target)
}
