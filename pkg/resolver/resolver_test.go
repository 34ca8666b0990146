package resolver

import (
	"slices"
	"testing"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/remediation"
)

func tmpl(id, gate string, strategy remediation.StrategyKind, priority int32) remediation.Template {
	t := remediation.Template{
		ID:        id,
		GateMatch: gate,
		ModuleID:  "cobs",
		Severity:  gates.SeverityMedium,
		Strategy:  strategy,
		Body:      "text for " + id,
		Insertion: remediation.End(),
		Priority:  priority,
	}
	switch strategy {
	case remediation.StrategyRegexReplacement:
		t.Insertion = remediation.Replace("guaranteed")
	case remediation.StrategyStructuralReorganization:
		t.Insertion = remediation.Start()
		t.SectionHeader = "Risk Warning"
	}
	return t
}

func fail(id string, sev gates.Severity) gates.Result {
	return gates.Result{GateID: id, ModuleID: "cobs", Status: gates.StatusFail, Severity: sev}
}

func build(t *testing.T, templates ...remediation.Template) *remediation.Registry {
	t.Helper()
	return buildWith(t, remediation.NewBuilder(nil), templates...)
}

func buildWith(t *testing.T, b *remediation.Builder, templates ...remediation.Template) *remediation.Registry {
	t.Helper()
	for _, tm := range templates {
		b.Register(tm)
	}
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return reg
}

func ids(plan Plan) []string {
	out := make([]string, len(plan.Steps))
	for i, s := range plan.Steps {
		out[i] = s.Template.ID
	}
	return out
}

func TestResolve_Ordering(t *testing.T) {
	reg := build(t,
		tmpl("structural_a", "gate_a", remediation.StrategyStructuralReorganization, 0),
		tmpl("structural_b", "gate_b", remediation.StrategyStructuralReorganization, 0),
		tmpl("regex_c", "gate_c", remediation.StrategyRegexReplacement, 0),
		tmpl("insert_low", "gate_d", remediation.StrategyTemplateInsertion, 1),
		tmpl("insert_high", "gate_e", remediation.StrategyTemplateInsertion, 10),
		tmpl("suggest", "gate_f", remediation.StrategySuggestionExtraction, 0),
	)
	failures := []gates.Result{
		fail("gate_a", gates.SeverityLow),
		fail("gate_b", gates.SeverityCritical),
		fail("gate_c", gates.SeverityLow),
		fail("gate_d", gates.SeverityCritical),
		fail("gate_e", gates.SeverityLow),
		fail("gate_f", gates.SeverityInformational),
	}

	plan := New(reg, nil).Resolve(document.New("body", document.Metadata{}), failures, nil)

	want := []string{"suggest", "regex_c", "insert_high", "insert_low", "structural_b", "structural_a"}
	if got := ids(plan); !slices.Equal(got, want) {
		t.Errorf("plan order = %v, want %v", got, want)
	}
	if len(plan.Unresolved) != 0 {
		t.Errorf("Unresolved = %v, want none", plan.Unresolved)
	}
}

func TestResolve_OrderIndependentOfInput(t *testing.T) {
	reg := build(t,
		tmpl("a1", "gate_a", remediation.StrategyTemplateInsertion, 0),
		tmpl("b1", "gate_b", remediation.StrategyTemplateInsertion, 0),
		tmpl("c1", "gate_c", remediation.StrategyTemplateInsertion, 0),
	)
	r := New(reg, nil)
	doc := document.New("x", document.Metadata{})

	forward := []gates.Result{fail("gate_a", gates.SeverityHigh), fail("gate_b", gates.SeverityHigh), fail("gate_c", gates.SeverityHigh)}
	reverse := []gates.Result{forward[2], forward[1], forward[0]}

	got1 := ids(r.Resolve(doc, forward, nil))
	got2 := ids(r.Resolve(doc, reverse, nil))
	if !slices.Equal(got1, got2) {
		t.Errorf("plan depends on input order: %v vs %v", got1, got2)
	}
	if !slices.Equal(got1, []string{"a1", "b1", "c1"}) {
		t.Errorf("ties should break on gate id, got %v", got1)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	reg := build(t, tmpl("a1", "gate_a", remediation.StrategyTemplateInsertion, 0))
	failures := []gates.Result{
		fail("zeta", gates.SeverityHigh),
		fail("gate_a", gates.SeverityHigh),
		{GateID: "passing", Status: gates.StatusPass},
		{GateID: "unsure", Status: gates.StatusWarning},
		fail("alpha", gates.SeverityHigh),
	}
	plan := New(reg, nil).Resolve(document.New("x", document.Metadata{}), failures, nil)

	if got := ids(plan); !slices.Equal(got, []string{"a1"}) {
		t.Errorf("steps = %v", got)
	}
	if !slices.Equal(plan.Unresolved, []string{"alpha", "zeta"}) {
		t.Errorf("Unresolved = %v", plan.Unresolved)
	}
}

func TestResolve_ConditionFilters(t *testing.T) {
	onlyLetters := tmpl("letters", "gate_a", remediation.StrategyTemplateInsertion, 0)
	onlyLetters.Condition = &remediation.Condition{DocumentTypes: []string{"letter"}}
	needsFirm := tmpl("firm", "gate_a", remediation.StrategyTemplateInsertion, 0)
	needsFirm.Condition = &remediation.Condition{RequiresContext: []string{"firm_name"}}

	reg := build(t, onlyLetters, needsFirm)
	r := New(reg, nil)
	promo := document.New("x", document.Metadata{DocumentType: "promotion"})

	tests := []struct {
		name       string
		ctx        remediation.Context
		want       []string
		unresolved bool
	}{
		{name: "no context", want: []string{}, unresolved: true},
		{name: "context supplied", ctx: remediation.Context{"firm_name": "Acme"}, want: []string{"firm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := r.Resolve(promo, []gates.Result{fail("gate_a", gates.SeverityHigh)}, tt.ctx)
			if got := ids(plan); !slices.Equal(got, tt.want) {
				t.Errorf("steps = %v, want %v", got, tt.want)
			}
			if (len(plan.Unresolved) > 0) != tt.unresolved {
				t.Errorf("Unresolved = %v", plan.Unresolved)
			}
		})
	}
}

func TestResolve_DuplicateFailureResolvedOnce(t *testing.T) {
	reg := build(t, tmpl("a1", "gate_a", remediation.StrategyTemplateInsertion, 0))
	failures := []gates.Result{fail("gate_a", gates.SeverityHigh), fail("gate_a", gates.SeverityHigh)}
	plan := New(reg, nil).Resolve(document.New("x", document.Metadata{}), failures, nil)
	if len(plan.Steps) != 1 {
		t.Errorf("len(Steps) = %d, want 1", len(plan.Steps))
	}
}

func TestResolve_SubstringFlagged(t *testing.T) {
	reg := buildWith(t, remediation.NewBuilder(nil).WithSubstringFallback(true),
		tmpl("a", "risk_warning", remediation.StrategyTemplateInsertion, 0),
		tmpl("b", "warning", remediation.StrategyTemplateInsertion, 0),
	)
	plan := New(reg, nil).Resolve(document.New("x", document.Metadata{}),
		[]gates.Result{fail("risk_warning_prominence", gates.SeverityHigh)}, nil)

	if len(plan.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(plan.Steps))
	}
	for _, s := range plan.Steps {
		if s.MatchKind != remediation.MatchSubstring || !s.Ambiguous {
			t.Errorf("step %s: kind=%s ambiguous=%v", s.Template.ID, s.MatchKind, s.Ambiguous)
		}
	}
}
