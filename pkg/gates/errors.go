package gates

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeverity indicates an unknown severity name or value.
	ErrInvalidSeverity = errors.New("invalid severity")

	// ErrDuplicateGate indicates a gate id was registered twice.
	ErrDuplicateGate = errors.New("duplicate gate id")

	// ErrInvalidDefinition indicates a gate definition is incomplete.
	ErrInvalidDefinition = errors.New("invalid gate definition")

	// ErrRegistryBuilt indicates a builder was used after Build.
	ErrRegistryBuilt = errors.New("gate registry already built")
)

// EvaluationError wraps an unexpected error raised by a gate. It is never
// returned to callers of Evaluate; its text becomes the Warning message.
type EvaluationError struct {
	GateID string
	Cause  error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("gate %s: evaluation error: %v", e.GateID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// PanicError records a recovered gate panic.
type PanicError struct {
	Value any
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
