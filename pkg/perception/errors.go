package perception

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoServerURL is returned when no classification server is configured.
	ErrNoServerURL = errors.New("perception: server URL required")

	// ErrBadRetry is returned for a negative retry count.
	ErrBadRetry = errors.New("perception: max retries must be >= 0")

	// ErrEmptyFrame is returned when the camera produced no data.
	ErrEmptyFrame = errors.New("perception: empty frame")

	// ErrUnrecognized is returned when the server's answer is not a
	// known directive.
	ErrUnrecognized = errors.New("perception: unrecognized directive")
)

// StatusError is a non-2xx response from the classification server.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("perception: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("perception: server returned %d: %s", e.StatusCode, e.Message)
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *StatusError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == 429 || e.IsServerError()
}
