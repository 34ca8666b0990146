package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no entry exists for a run id.
	ErrNotFound = errors.New("audit entry not found")

	// ErrDuplicateRun indicates a run id was recorded twice.
	ErrDuplicateRun = errors.New("audit entry already recorded for run")

	// ErrInvalidEntry indicates an entry is missing required fields.
	ErrInvalidEntry = errors.New("invalid audit entry")

	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.New("audit store closed")

	// ErrUnsupportedDriver indicates an unknown SQL driver name.
	ErrUnsupportedDriver = errors.New("unsupported sqlite driver")
)

// StorageError reports a failed backend operation.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func storageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: op, Cause: cause}
}
