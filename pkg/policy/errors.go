package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBundle indicates a bundle that failed validation.
	ErrInvalidBundle = errors.New("invalid policy bundle")

	// ErrNoBundleFiles indicates a directory or repository without bundle files.
	ErrNoBundleFiles = errors.New("no policy bundle files found")

	// ErrUnknownGateKind indicates a gate whose kind is not supported.
	ErrUnknownGateKind = errors.New("unknown gate kind")

	// ErrUnknownSource indicates an unsupported source type.
	ErrUnknownSource = errors.New("unknown policy source")
)

// BundleError describes a failure loading or validating one part of a bundle.
type BundleError struct {
	// File is the bundle file, when known.
	File string

	// Item names the offending gate, template or mapping, when known.
	Item string

	Cause error
}

// Error implements the error interface.
func (e *BundleError) Error() string {
	switch {
	case e.File != "" && e.Item != "":
		return fmt.Sprintf("policy %s: %s: %v", e.File, e.Item, e.Cause)
	case e.File != "":
		return fmt.Sprintf("policy %s: %v", e.File, e.Cause)
	case e.Item != "":
		return fmt.Sprintf("policy: %s: %v", e.Item, e.Cause)
	}
	return fmt.Sprintf("policy: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *BundleError) Unwrap() error {
	return e.Cause
}
