package remediation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTemplate indicates a template is incomplete or inconsistent.
	ErrInvalidTemplate = errors.New("invalid remediation template")

	// ErrDuplicateTemplate indicates a template id was registered twice.
	ErrDuplicateTemplate = errors.New("duplicate remediation template")

	// ErrUnknownPlaceholder indicates a placeholder with no field and no default.
	ErrUnknownPlaceholder = errors.New("unknown placeholder")

	// ErrMalformedTemplate indicates unbalanced or invalid placeholder syntax.
	ErrMalformedTemplate = errors.New("malformed template")

	// ErrInvalidInsertion indicates an unknown or incomplete insertion point.
	ErrInvalidInsertion = errors.New("invalid insertion point")

	// ErrUnknownTemplate indicates the mapping table names a missing template.
	ErrUnknownTemplate = errors.New("unknown remediation template")

	// ErrRegistryBuilt indicates a builder was used after Build.
	ErrRegistryBuilt = errors.New("remediation registry already built")
)

// TemplateError reports a registration-time problem with one template.
type TemplateError struct {
	TemplateID string
	Cause      error
}

// Error returns the error message.
func (e *TemplateError) Error() string {
	return fmt.Sprintf("remediation template %q: %v", e.TemplateID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}
