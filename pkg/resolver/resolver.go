package resolver

import (
	"log/slog"
	"sort"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/remediation"
)

// Resolved pairs a failing gate result with one template that remediates it.
type Resolved struct {
	Result    gates.Result
	Template  remediation.Template
	MatchKind remediation.MatchKind
	Ambiguous bool
}

// Signature identifies the remediation independently of the document it is
// applied to.
func (r Resolved) Signature() string {
	return r.Result.GateID + "\x00" + r.Template.ID
}

// Plan is the resolver output for one iteration.
type Plan struct {
	// Steps is the ordered remediation list.
	Steps []Resolved

	// Unresolved lists the failing gate ids with no usable template, sorted.
	Unresolved []string
}

// Empty reports whether the plan has nothing to apply.
func (p Plan) Empty() bool {
	return len(p.Steps) == 0
}

// Resolver selects and orders remediation templates for failing gates.
type Resolver struct {
	registry *remediation.Registry
	logger   *slog.Logger
}

// New creates a resolver over an immutable remediation registry.
func New(registry *remediation.Registry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry: registry,
		logger:   logger.With("component", "resolver"),
	}
}

// Resolve builds the remediation plan for the failing results against doc.
// Non-failing results are ignored.
func (r *Resolver) Resolve(doc document.Document, failures []gates.Result, ctx remediation.Context) Plan {
	var plan Plan
	seen := make(map[string]bool)

	for _, res := range failures {
		if !res.Failed() || seen[res.GateID] {
			continue
		}
		seen[res.GateID] = true

		found := 0
		for _, c := range r.registry.FindCandidates(res.GateID) {
			if !c.Template.Condition.Holds(doc, ctx) {
				r.logger.Debug("template condition not met",
					"gate_id", res.GateID,
					"template_id", c.Template.ID,
				)
				continue
			}
			plan.Steps = append(plan.Steps, Resolved{
				Result:    res,
				Template:  c.Template,
				MatchKind: c.Kind,
				Ambiguous: c.Ambiguous,
			})
			found++
		}
		if found == 0 {
			plan.Unresolved = append(plan.Unresolved, res.GateID)
		}
	}

	Sort(plan.Steps)
	sort.Strings(plan.Unresolved)

	r.logger.Debug("remediation plan resolved",
		"steps", len(plan.Steps),
		"unresolved", len(plan.Unresolved),
	)
	return plan
}

// Sort orders steps by strategy rank, then priority (highest first), then
// gate severity (highest first), then gate id, then template id.
func Sort(steps []Resolved) {
	sort.SliceStable(steps, func(i, j int) bool {
		return Less(steps[i], steps[j])
	})
}

// Less reports whether a is applied before b.
func Less(a, b Resolved) bool {
	if ra, rb := a.Template.Strategy.Rank(), b.Template.Strategy.Rank(); ra != rb {
		return ra < rb
	}
	if a.Template.Priority != b.Template.Priority {
		return a.Template.Priority > b.Template.Priority
	}
	if a.Result.Severity != b.Result.Severity {
		return a.Result.Severity > b.Result.Severity
	}
	if a.Result.GateID != b.Result.GateID {
		return a.Result.GateID < b.Result.GateID
	}
	return a.Template.ID < b.Template.ID
}
