package gcal

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// APIError represents a non-2xx response from the calendar provider. These
// are usually transient; the caller records them and moves on.
type APIError struct {
	// Op is the calendar operation that failed ("createEvent", ...).
	Op string

	// StatusCode is the HTTP status returned by the provider.
	StatusCode int

	// Message is the provider's error message.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("calendar %s: %d %s", e.Op, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a provider "not found" (or "gone")
// response.
func IsNotFound(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == http.StatusNotFound || ae.StatusCode == http.StatusGone
	}
	return false
}

// wrapAPIError converts Google API client errors into *APIError, preserving
// anything else (including oauth.AuthError from the auth transport) with
// context.
func wrapAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Body
		}
		return &APIError{Op: op, StatusCode: gerr.Code, Message: msg}
	}
	return fmt.Errorf("calendar %s: %w", op, err)
}
