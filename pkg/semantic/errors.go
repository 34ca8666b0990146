package semantic

import (
	"errors"
	"fmt"
)

var (
	// ErrDisabled is returned by the disabled analyzer.
	ErrDisabled = errors.New("semantic analysis disabled")

	// ErrInvalidResponse indicates the service returned an unparseable body.
	ErrInvalidResponse = errors.New("invalid semantic analysis response")
)

// ServiceError represents a failed call to the semantic-analysis service.
type ServiceError struct {
	// Service is the configured service name.
	Service string

	// StatusCode is the HTTP status code (0 for transport failures).
	StatusCode int

	// Message is a short description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("semantic service %q error (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("semantic service %q error: %s: %v", e.Service, e.Message, e.Cause)
	}
	return fmt.Sprintf("semantic service %q error: %s", e.Service, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// retryable reports whether the status code is worth retrying.
func retryable(status int) bool {
	return status == 429 || status >= 500
}
