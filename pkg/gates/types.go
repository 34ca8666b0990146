package gates

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mercator-hq/gatekeeper/pkg/document"
)

// Severity ranks how serious a gate failure is. Higher values are more severe.
type Severity int

const (
	// SeverityInformational is the lowest severity.
	SeverityInformational Severity = iota + 1
	// SeverityLow marks minor issues.
	SeverityLow
	// SeverityMedium marks issues that should be fixed.
	SeverityMedium
	// SeverityHigh marks serious issues.
	SeverityHigh
	// SeverityCritical marks issues that make a document unusable.
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityInformational: "informational",
	SeverityLow:           "low",
	SeverityMedium:        "medium",
	SeverityHigh:          "high",
	SeverityCritical:      "critical",
}

// String returns the lower-case severity name.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Valid reports whether s is one of the declared severities.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// ParseSeverity parses a severity name (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for sev, name := range severityNames {
		if name == want {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeverity, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Status is the outcome of a single gate evaluation.
type Status string

const (
	// StatusPass means the document satisfies the gate.
	StatusPass Status = "pass"
	// StatusFail means the document violates the gate.
	StatusFail Status = "fail"
	// StatusWarning means the gate could not determine compliance, or found
	// a non-blocking issue.
	StatusWarning Status = "warning"
	// StatusNotApplicable means the gate does not apply to the document.
	StatusNotApplicable Status = "not_applicable"
)

// Result is produced once per gate per evaluation.
type Result struct {
	GateID       string          `json:"gate_id"`
	ModuleID     string          `json:"module_id"`
	Status       Status          `json:"status"`
	Severity     Severity        `json:"severity"`
	Message      string          `json:"message,omitempty"`
	MatchedSpans []document.Span `json:"matched_spans,omitempty"`

	// SuggestedFix is replacement or insertion text proposed by the gate
	// itself. Empty means no suggestion.
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// Failed reports whether the result is a failure.
func (r Result) Failed() bool {
	return r.Status == StatusFail
}

// EvaluateFunc is a gate's check. It must be a pure function of the document:
// no shared mutable state may be observed or modified. The registry fills
// GateID, ModuleID and Severity on the returned result.
type EvaluateFunc func(ctx context.Context, doc document.Document) (Result, error)

// Definition is a registered gate.
type Definition struct {
	// ID is the unique gate identifier.
	ID string

	// ModuleID is the module the gate belongs to.
	ModuleID string

	// Severity is the severity reported on failure.
	Severity Severity

	// Description is a human-readable summary.
	Description string

	// DocumentTypes restricts the gate to these document types. Empty means
	// the gate applies to every document.
	DocumentTypes []string

	// Evaluate performs the check.
	Evaluate EvaluateFunc
}

// appliesTo reports whether the gate applies to a document type.
func (d Definition) appliesTo(documentType string) bool {
	if len(d.DocumentTypes) == 0 {
		return true
	}
	for _, t := range d.DocumentTypes {
		if strings.EqualFold(t, documentType) {
			return true
		}
	}
	return false
}

// Module groups gates belonging to one regulatory framework.
type Module struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Report is the result of evaluating a set of gates against one document.
type Report struct {
	// Results is sorted by gate id.
	Results []Result `json:"results"`

	// OverallRisk is the highest severity among failed results, or
	// SeverityInformational when nothing failed.
	OverallRisk Severity `json:"overall_risk"`
}

// NewReport builds a report from results, sorting them by gate id and
// computing the overall risk.
func NewReport(results []Result) Report {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GateID < sorted[j].GateID
	})

	risk := SeverityInformational
	for _, r := range sorted {
		if r.Failed() && r.Severity > risk {
			risk = r.Severity
		}
	}
	return Report{Results: sorted, OverallRisk: risk}
}

// Failures returns the failed results in gate id order.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// FailingIDs returns the sorted ids of failed gates.
func (r Report) FailingIDs() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Failed() {
			ids = append(ids, res.GateID)
		}
	}
	return ids
}

// HasFailures reports whether any gate failed.
func (r Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Failed() {
			return true
		}
	}
	return false
}

// Count returns the number of results with the given status.
func (r Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Get returns the result for a gate id.
func (r Report) Get(gateID string) (Result, bool) {
	i := sort.Search(len(r.Results), func(i int) bool {
		return r.Results[i].GateID >= gateID
	})
	if i < len(r.Results) && r.Results[i].GateID == gateID {
		return r.Results[i], true
	}
	return Result{}, false
}
