package remediation

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
)

func insertion(id, gate string) Template {
	return Template{
		ID:        id,
		GateMatch: gate,
		ModuleID:  "cobs",
		Severity:  gates.SeverityHigh,
		Strategy:  StrategyTemplateInsertion,
		Body:      "Capital at risk. Issued by {{firm_name}}.",
		Insertion: Start(),
	}
}

func TestBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    Template
		wantErr error
	}{
		{
			name:    "unknown placeholder",
			tmpl:    func() Template { t := insertion("t", "g"); t.Body = "Hello {{nobody}}"; return t }(),
			wantErr: ErrUnknownPlaceholder,
		},
		{
			name:    "malformed placeholder",
			tmpl:    func() Template { t := insertion("t", "g"); t.Body = "Hello {{firm_name"; return t }(),
			wantErr: ErrMalformedTemplate,
		},
		{
			name:    "invalid placeholder name",
			tmpl:    func() Template { t := insertion("t", "g"); t.Body = "Hello {{firm-name}}"; return t }(),
			wantErr: ErrMalformedTemplate,
		},
		{
			name:    "unknown strategy",
			tmpl:    func() Template { t := insertion("t", "g"); t.Strategy = "rewrite"; return t }(),
			wantErr: ErrInvalidTemplate,
		},
		{
			name: "regex strategy needs replace",
			tmpl: func() Template {
				t := insertion("t", "g")
				t.Strategy = StrategyRegexReplacement
				return t
			}(),
			wantErr: ErrInvalidTemplate,
		},
		{
			name: "bad replace pattern",
			tmpl: func() Template {
				t := insertion("t", "g")
				t.Strategy = StrategyRegexReplacement
				t.Insertion = Replace("([")
				return t
			}(),
			wantErr: ErrInvalidInsertion,
		},
		{
			name:    "section without header",
			tmpl:    func() Template { t := insertion("t", "g"); t.Insertion = Section(" "); return t }(),
			wantErr: ErrInvalidInsertion,
		},
		{
			name: "structural without header",
			tmpl: func() Template {
				t := insertion("t", "g")
				t.Strategy = StrategyStructuralReorganization
				return t
			}(),
			wantErr: ErrInvalidTemplate,
		},
		{
			name:    "success rate out of range",
			tmpl:    func() Template { t := insertion("t", "g"); t.SuccessRate = 1.5; return t }(),
			wantErr: ErrInvalidTemplate,
		},
		{
			name:    "bad condition regex",
			tmpl:    func() Template { t := insertion("t", "g"); t.Condition = &Condition{TextAbsent: "(("}; return t }(),
			wantErr: ErrInvalidTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(nil).Register(tt.tmpl).Build()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
			}
			var tErr *TemplateError
			if !errors.As(err, &tErr) || tErr.TemplateID != "t" {
				t.Errorf("error should identify the template, got %v", err)
			}
		})
	}
}

func TestBuilder_DuplicateAndMapping(t *testing.T) {
	_, err := NewBuilder(nil).Register(insertion("a", "g")).Register(insertion("a", "g")).Build()
	if !errors.Is(err, ErrDuplicateTemplate) {
		t.Errorf("duplicate: error = %v", err)
	}

	_, err = NewBuilder(nil).Register(insertion("a", "g")).Map("g", "a", "missing").Build()
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("mapping: error = %v", err)
	}
}

func TestBuilder_LocalAndSharedFields(t *testing.T) {
	local := insertion("local", "g")
	local.Body = "Fee: {{fee_rate}}"
	local.Fields = []Field{{Name: "fee_rate", Default: "1%"}}

	shared := insertion("shared", "g")
	shared.Body = "Scheme: {{scheme}}"

	reg, err := NewBuilder(nil).
		DeclareField(Field{Name: "scheme", Default: "FSCS"}).
		Register(local).
		Register(shared).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	lt, _ := reg.Template("local")
	if got, _ := reg.Render(lt, nil); got != "Fee: 1%" {
		t.Errorf("local default render = %q", got)
	}
	st, _ := reg.Template("shared")
	if got, _ := reg.Render(st, Context{"scheme": "DGS"}); got != "Scheme: DGS" {
		t.Errorf("context render = %q", got)
	}
}

func TestRender(t *testing.T) {
	tmpl := insertion("t", "g")
	tmpl.Body = "{{firm_name}} / {{ counterparty_name }} / {{firm_name}}"
	reg, err := NewBuilder(nil).Register(tmpl).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	tmpl, _ = reg.Template("t")

	tests := []struct {
		name         string
		ctx          Context
		want         string
		completeness float64
	}{
		{name: "all defaults", ctx: nil, want: "the Firm / the Client / the Firm", completeness: 0},
		{name: "partial", ctx: Context{"firm_name": "Acme Ltd"}, want: "Acme Ltd / the Client / Acme Ltd", completeness: 0.5},
		{name: "unknown keys ignored", ctx: Context{"firm_name": "A", "counterparty_name": "B", "other": "x"}, want: "A / B / A", completeness: 1},
		{name: "values not re-expanded", ctx: Context{"firm_name": "{{counterparty_name}}"}, want: "{{counterparty_name}} / the Client / {{counterparty_name}}", completeness: 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := reg.RenderDetail(tmpl, tt.ctx)
			if err != nil {
				t.Fatalf("RenderDetail() error = %v", err)
			}
			if r.Text != tt.want {
				t.Errorf("Text = %q, want %q", r.Text, tt.want)
			}
			if r.Completeness() != tt.completeness {
				t.Errorf("Completeness() = %v, want %v", r.Completeness(), tt.completeness)
			}
		})
	}

	if _, err := reg.RenderText(tmpl, "Contact {{unknown_thing}}", nil); !errors.Is(err, ErrUnknownPlaceholder) {
		t.Errorf("RenderText() unknown placeholder error = %v", err)
	}
	if got := tmpl.Placeholders(); len(got) != 2 {
		t.Errorf("Placeholders() = %v, want 2 distinct", got)
	}
}

func TestFindCandidates(t *testing.T) {
	reg, err := NewBuilder(nil).WithSubstringFallback(true).
		Register(insertion("exact", "fair_clear_not_misleading")).
		Register(insertion("mapped", "legacy_fcnm")).
		Register(insertion("sub_a", "risk_warning")).
		Register(insertion("sub_b", "warning")).
		Register(insertion("sub_c", "COMPLAINTS")).
		Map("fair_clear_not_misleading", "mapped").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tests := []struct {
		name      string
		gateID    string
		wantIDs   []string
		wantKind  []MatchKind
		ambiguous bool
	}{
		{
			name:     "mapped and exact together, no fallback",
			gateID:   "fair_clear_not_misleading",
			wantIDs:  []string{"exact", "mapped"},
			wantKind: []MatchKind{MatchExact, MatchMapped},
		},
		{
			name:     "gate id contains matcher, case-insensitive",
			gateID:   "complaints_handling",
			wantIDs:  []string{"sub_c"},
			wantKind: []MatchKind{MatchSubstring},
		},
		{
			name:     "matcher contains gate id",
			gateID:   "risk",
			wantIDs:  []string{"sub_a"},
			wantKind: []MatchKind{MatchSubstring},
		},
		{
			name:      "ambiguous fallback flagged",
			gateID:    "risk_warning_prominence",
			wantIDs:   []string{"sub_a", "sub_b"},
			wantKind:  []MatchKind{MatchSubstring, MatchSubstring},
			ambiguous: true,
		},
		{
			name:   "no candidates",
			gateID: "best_execution",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reg.FindCandidates(tt.gateID)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.wantIDs), got)
			}
			for i, c := range got {
				if c.Template.ID != tt.wantIDs[i] {
					t.Errorf("[%d] ID = %q, want %q", i, c.Template.ID, tt.wantIDs[i])
				}
				if c.Kind != tt.wantKind[i] {
					t.Errorf("[%d] Kind = %q, want %q", i, c.Kind, tt.wantKind[i])
				}
				if c.Ambiguous != tt.ambiguous {
					t.Errorf("[%d] Ambiguous = %v, want %v", i, c.Ambiguous, tt.ambiguous)
				}
			}
		})
	}
}

func TestFindCandidates_FallbackDisabled(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
	}{
		{name: "default", builder: NewBuilder(nil)},
		{name: "explicit", builder: NewBuilder(nil).WithSubstringFallback(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := tt.builder.Register(insertion("sub", "risk_warning")).Build()
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got := reg.FindCandidates("risk_warning_prominence"); len(got) != 0 {
				t.Errorf("fallback disabled should return nothing, got %v", got)
			}
		})
	}
}

func TestParseInsertionPoint(t *testing.T) {
	tests := []struct {
		in      string
		want    InsertionPoint
		wantErr bool
	}{
		{in: "start", want: Start()},
		{in: "end", want: End()},
		{in: "before_signature", want: BeforeSignature()},
		{in: "section: Risk Warning", want: Section("Risk Warning")},
		{in: "replace:(?i)guaranteed: returns", want: Replace("(?i)guaranteed: returns")},
		{in: "section:", wantErr: true},
		{in: "replace", wantErr: true},
		{in: "middle", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInsertionPoint(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInsertionPoint() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseInsertionPoint() = %+v, want %+v", got, tt.want)
			}
			if !tt.wantErr {
				back, _ := ParseInsertionPoint(got.String())
				if back != got {
					t.Errorf("String() round trip = %+v", back)
				}
			}
		})
	}
}

func TestCondition(t *testing.T) {
	tmpl := insertion("t", "g")
	tmpl.Condition = &Condition{
		DocumentTypes:   []string{"promotion"},
		RequiresContext: []string{"firm_name"},
		TextAbsent:      "(?i)capital at risk",
	}
	reg, err := NewBuilder(nil).Register(tmpl).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	tmpl, _ = reg.Template("t")

	promo := func(text string) document.Document {
		return document.New(text, document.Metadata{DocumentType: "Promotion"})
	}
	tests := []struct {
		name string
		doc  document.Document
		ctx  Context
		want bool
	}{
		{name: "holds", doc: promo("buy now"), ctx: Context{"firm_name": "A"}, want: true},
		{name: "wrong type", doc: document.New("buy", document.Metadata{DocumentType: "letter"}), ctx: Context{"firm_name": "A"}},
		{name: "missing context", doc: promo("buy now")},
		{name: "text present", doc: promo("Capital at risk"), ctx: Context{"firm_name": "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tmpl.Condition.Holds(tt.doc, tt.ctx); got != tt.want {
				t.Errorf("Holds() = %v, want %v", got, tt.want)
			}
		})
	}
	var nilCond *Condition
	if !nilCond.Holds(promo(""), nil) {
		t.Error("nil condition must hold")
	}
}

func TestStrategyRank(t *testing.T) {
	order := []StrategyKind{
		StrategySuggestionExtraction,
		StrategyRegexReplacement,
		StrategyTemplateInsertion,
		StrategyStructuralReorganization,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
	if StrategyKind("other").Rank() <= StrategyStructuralReorganization.Rank() {
		t.Error("unknown strategies rank last")
	}
	if !strings.HasPrefix(Section("X").String(), "section:") {
		t.Error("Section String() prefix")
	}
}
