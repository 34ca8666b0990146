package transform

import "errors"

var (
	// ErrInvalidDelta indicates a delta cannot be replayed on a text.
	ErrInvalidDelta = errors.New("invalid delta")

	// ErrInvalidWeights indicates confidence weights are negative or all zero.
	ErrInvalidWeights = errors.New("invalid confidence weights")
)
