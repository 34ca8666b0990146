package synthesis

import (
	"fmt"
	"time"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/guard"
	"mercator-hq/gatekeeper/pkg/remediation"
	"mercator-hq/gatekeeper/pkg/transform"
)

// DefaultMaxIterations bounds the loop when the request does not.
const DefaultMaxIterations = 5

// Outcome is the terminal state of a run.
type Outcome string

const (
	// OutcomeConverged means no gate fails on the final document.
	OutcomeConverged Outcome = "converged"

	// OutcomeNeedsReview means failures remain because no remediation was
	// available or the iteration bound was reached.
	OutcomeNeedsReview Outcome = "needs_review"

	// OutcomeStalled means an iteration made no change and the failing gate
	// set did not move.
	OutcomeStalled Outcome = "stalled"
)

// Request is one document to synthesize.
type Request struct {
	Text         string
	DocumentType string

	// ModuleIDs selects the modules to evaluate. Empty evaluates every
	// module.
	ModuleIDs []string

	// Context supplies template placeholder values.
	Context remediation.Context

	// MaxIterations overrides the engine default when non-nil. Zero is a
	// valid bound: failures are reported without remediation.
	MaxIterations *int
}

// Iterations returns a pointer for Request.MaxIterations.
func Iterations(n int) *int {
	return &n
}

// Result is the terminal artifact of a run.
type Result struct {
	RunID         string
	PolicyVersion string
	InputHash     string

	FinalDocument document.Document
	FinalReport   gates.Report

	Corrections    []transform.CorrectionRecord
	IterationsUsed int
	Outcome        Outcome

	// ResidualFailures holds the failing results of the final report for
	// NeedsReview and Stalled runs.
	ResidualFailures []gates.Result

	// Unresolved lists failing gates that had no usable remediation in the
	// last resolving step.
	Unresolved []string

	StartedAt time.Time
	Duration  time.Duration
}

// FinalHash returns the content hash of the final document.
func (r *Result) FinalHash() string {
	return r.FinalDocument.Hash()
}

// HashChain returns the after-hash of every correction, in order.
func (r *Result) HashChain() []string {
	out := make([]string, len(r.Corrections))
	for i, c := range r.Corrections {
		out[i] = c.HashAfter
	}
	return out
}

// Changes returns how many corrections changed the document.
func (r *Result) Changes() int {
	n := 0
	for _, c := range r.Corrections {
		if c.Changed() {
			n++
		}
	}
	return n
}

// Verify re-checks the run's hash chain against the input text.
func (r *Result) Verify(input string) error {
	if document.HashString(input) != r.InputHash {
		return fmt.Errorf("%w: input does not match the run's input hash", guard.ErrChainBroken)
	}
	return guard.VerifyChain(input, r.FinalDocument.Text(), r.Corrections)
}

// Observer is notified of finished runs. Implementations must be safe for
// concurrent use.
type Observer interface {
	SynthesisCompleted(result *Result)
}
