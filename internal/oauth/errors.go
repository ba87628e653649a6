package oauth

import (
	"errors"
	"fmt"
)

// AuthError indicates a credential problem that generally requires the user
// to reauthorize: an expired or missing token, a failed exchange or refresh,
// a state mismatch, or revoked consent. Callers surface it as a "reconnect"
// prompt.
type AuthError struct {
	// Op is the lifecycle operation that failed ("exchange", "refresh", ...).
	Op string

	// Reason is a human-readable description of the failure.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("oauth %s: %s", e.Op, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(op, reason string, err error) *AuthError {
	return &AuthError{Op: op, Reason: reason, Err: err}
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
