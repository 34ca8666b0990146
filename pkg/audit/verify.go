package audit

import (
	"fmt"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/guard"
)

// Verify re-checks an entry's hash chain. When the entry retained document
// text, every delta is replayed; otherwise only the hash links are checked.
func Verify(e *Entry) error {
	if !e.HasText() {
		return guard.VerifyHashes(e.InputHash, e.FinalHash, e.Corrections)
	}
	if got := document.HashString(e.InputText); got != e.InputHash {
		return fmt.Errorf("%w: input text does not match input hash", guard.ErrChainBroken)
	}
	if got := document.HashString(e.FinalText); got != e.FinalHash {
		return fmt.Errorf("%w: final text does not match final hash", guard.ErrChainBroken)
	}
	return guard.VerifyChain(e.InputText, e.FinalText, e.Corrections)
}
