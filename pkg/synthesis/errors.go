package synthesis

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request.
	ErrInvalidRequest = errors.New("invalid synthesis request")

	// ErrCancelled indicates the run was cancelled between iterations.
	ErrCancelled = errors.New("synthesis cancelled")

	// ErrDuplicateItem indicates two batch items share an id.
	ErrDuplicateItem = errors.New("duplicate batch item id")
)
