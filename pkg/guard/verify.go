package guard

import (
	"errors"
	"fmt"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/transform"
)

var (
	// ErrChainBroken indicates the correction hash chain does not link up.
	ErrChainBroken = errors.New("correction hash chain broken")

	// ErrDeltaMismatch indicates a record's delta does not reproduce its
	// recorded after-hash.
	ErrDeltaMismatch = errors.New("correction delta does not match recorded hash")
)

// ChainError locates a verification failure.
type ChainError struct {
	// Index is the offending record, or -1 for the input/final check.
	Index int
	Cause error
}

// Error returns the error message.
func (e *ChainError) Error() string {
	if e.Index < 0 {
		return e.Cause.Error()
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ChainError) Unwrap() error {
	return e.Cause
}

// VerifyChain checks the hash chain of a run:
//
//	records[0].HashBefore == hash(input)
//	records[i].HashAfter  == records[i+1].HashBefore
//	records[last].HashAfter == hash(final)
//
// and replays every delta from input, checking each intermediate text
// against its recorded hashes. With no records, input and final must be
// identical.
func VerifyChain(input, final string, records []transform.CorrectionRecord) error {
	if len(records) == 0 {
		if document.HashString(input) != document.HashString(final) {
			return &ChainError{Index: -1, Cause: fmt.Errorf("%w: no corrections but final differs from input", ErrChainBroken)}
		}
		return nil
	}

	text := input
	prev := document.HashString(input)
	for i, r := range records {
		if r.HashBefore != prev {
			return &ChainError{Index: i, Cause: fmt.Errorf("%w: hash before %s, want %s", ErrChainBroken, short(r.HashBefore), short(prev))}
		}
		next, err := transform.Replay(text, r.Delta)
		if err != nil {
			return &ChainError{Index: i, Cause: err}
		}
		if got := document.HashString(next); got != r.HashAfter {
			return &ChainError{Index: i, Cause: fmt.Errorf("%w: replayed %s, recorded %s", ErrDeltaMismatch, short(got), short(r.HashAfter))}
		}
		text = next
		prev = r.HashAfter
	}

	if want := document.HashString(final); prev != want {
		return &ChainError{Index: -1, Cause: fmt.Errorf("%w: last hash after %s, final document %s", ErrChainBroken, short(prev), short(want))}
	}
	return nil
}

// VerifyHashes checks only that the recorded hashes link up from input to
// final. It is used when deltas were not retained.
func VerifyHashes(inputHash, finalHash string, records []transform.CorrectionRecord) error {
	prev := inputHash
	for i, r := range records {
		if r.HashBefore != prev {
			return &ChainError{Index: i, Cause: fmt.Errorf("%w: hash before %s, want %s", ErrChainBroken, short(r.HashBefore), short(prev))}
		}
		prev = r.HashAfter
	}
	if prev != finalHash {
		return &ChainError{Index: -1, Cause: fmt.Errorf("%w: chain ends at %s, final document %s", ErrChainBroken, short(prev), short(finalHash))}
	}
	return nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
