package semantic

import "context"

// Verdict is the service's answer to a policy question.
type Verdict string

const (
	// VerdictViolation means the excerpt violates the policy question.
	VerdictViolation Verdict = "violation"

	// VerdictCompliant means the excerpt satisfies the policy question.
	VerdictCompliant Verdict = "compliant"

	// VerdictUncertain means the service could not decide.
	VerdictUncertain Verdict = "uncertain"
)

// Finding is the result of a single analysis call.
type Finding struct {
	Verdict    Verdict `json:"finding"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Analyzer answers a policy question about a text excerpt.
type Analyzer interface {
	Analyze(ctx context.Context, excerpt, question string) (Finding, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, excerpt, question string) (Finding, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, excerpt, question string) (Finding, error) {
	return f(ctx, excerpt, question)
}

// Disabled is an Analyzer that always fails with ErrDisabled. Gates using it
// report Warning results, which keeps the "could not determine" signal visible.
var Disabled Analyzer = AnalyzerFunc(func(_ context.Context, _, _ string) (Finding, error) {
	return Finding{}, ErrDisabled
})
