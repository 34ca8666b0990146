package remediation

import (
	"fmt"
	"regexp"
	"strings"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
)

// StrategyKind is the category of remediation.
type StrategyKind string

const (
	// StrategySuggestionExtraction applies the fix text suggested by the
	// failing gate, falling back to the template body.
	StrategySuggestionExtraction StrategyKind = "suggestion_extraction"

	// StrategyRegexReplacement replaces every match of the Replace pattern
	// with the rendered body.
	StrategyRegexReplacement StrategyKind = "regex_replacement"

	// StrategyTemplateInsertion inserts the rendered body at the insertion
	// point.
	StrategyTemplateInsertion StrategyKind = "template_insertion"

	// StrategyStructuralReorganization moves (or creates) the template's
	// section so that it sits at the insertion point.
	StrategyStructuralReorganization StrategyKind = "structural_reorganization"
)

var strategyRanks = map[StrategyKind]int{
	StrategySuggestionExtraction:     0,
	StrategyRegexReplacement:         1,
	StrategyTemplateInsertion:        2,
	StrategyStructuralReorganization: 3,
}

// Rank returns the strategy's application precedence. Lower ranks are
// applied first because later strategies depend on the text shape produced
// by earlier ones.
func (k StrategyKind) Rank() int {
	if r, ok := strategyRanks[k]; ok {
		return r
	}
	return len(strategyRanks)
}

// Valid reports whether k is a known strategy.
func (k StrategyKind) Valid() bool {
	_, ok := strategyRanks[k]
	return ok
}

// InsertionKind selects where a remediation lands.
type InsertionKind string

const (
	InsertStart           InsertionKind = "start"
	InsertEnd             InsertionKind = "end"
	InsertSection         InsertionKind = "section"
	InsertBeforeSignature InsertionKind = "before_signature"
	InsertReplace         InsertionKind = "replace"
)

// InsertionPoint is where a remediation is applied. Header is set for
// InsertSection and Pattern for InsertReplace.
type InsertionPoint struct {
	Kind    InsertionKind `json:"kind"`
	Header  string        `json:"header,omitempty"`
	Pattern string        `json:"pattern,omitempty"`
}

// Start returns the Start insertion point.
func Start() InsertionPoint { return InsertionPoint{Kind: InsertStart} }

// End returns the End insertion point.
func End() InsertionPoint { return InsertionPoint{Kind: InsertEnd} }

// BeforeSignature returns the BeforeSignature insertion point.
func BeforeSignature() InsertionPoint { return InsertionPoint{Kind: InsertBeforeSignature} }

// Section returns a Section(header) insertion point.
func Section(header string) InsertionPoint {
	return InsertionPoint{Kind: InsertSection, Header: header}
}

// Replace returns a Replace(pattern) insertion point.
func Replace(pattern string) InsertionPoint {
	return InsertionPoint{Kind: InsertReplace, Pattern: pattern}
}

// String renders the insertion point in its declarative form, e.g.
// "start", "section:Risk Warning" or "replace:(?i)guaranteed".
func (p InsertionPoint) String() string {
	switch p.Kind {
	case InsertSection:
		return "section:" + p.Header
	case InsertReplace:
		return "replace:" + p.Pattern
	default:
		return string(p.Kind)
	}
}

// ParseInsertionPoint parses the declarative form produced by String.
func ParseInsertionPoint(s string) (InsertionPoint, error) {
	kind, arg, hasArg := strings.Cut(s, ":")
	switch InsertionKind(strings.TrimSpace(kind)) {
	case InsertStart:
		return Start(), nil
	case InsertEnd:
		return End(), nil
	case InsertBeforeSignature:
		return BeforeSignature(), nil
	case InsertSection:
		if !hasArg || strings.TrimSpace(arg) == "" {
			return InsertionPoint{}, fmt.Errorf("%w: section insertion needs a header", ErrInvalidInsertion)
		}
		return Section(strings.TrimSpace(arg)), nil
	case InsertReplace:
		if !hasArg || arg == "" {
			return InsertionPoint{}, fmt.Errorf("%w: replace insertion needs a pattern", ErrInvalidInsertion)
		}
		return Replace(arg), nil
	}
	return InsertionPoint{}, fmt.Errorf("%w: %q", ErrInvalidInsertion, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p InsertionPoint) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *InsertionPoint) UnmarshalText(text []byte) error {
	parsed, err := ParseInsertionPoint(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Condition restricts when a template may be used.
type Condition struct {
	// DocumentTypes limits the template to these document types.
	DocumentTypes []string `json:"document_types,omitempty" yaml:"document_types"`

	// RequiresContext lists context keys the caller must supply.
	RequiresContext []string `json:"requires_context,omitempty" yaml:"requires_context"`

	// TextAbsent is a regex that must not match the document text.
	TextAbsent string `json:"text_absent,omitempty" yaml:"text_absent"`

	textAbsent *regexp.Regexp
}

// Holds reports whether the condition is satisfied for doc and ctx.
func (c *Condition) Holds(doc document.Document, ctx Context) bool {
	if c == nil {
		return true
	}
	if len(c.DocumentTypes) > 0 {
		ok := false
		for _, t := range c.DocumentTypes {
			if strings.EqualFold(t, doc.DocumentType()) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, key := range c.RequiresContext {
		if _, ok := ctx[key]; !ok {
			return false
		}
	}
	if c.textAbsent != nil && c.textAbsent.MatchString(doc.Text()) {
		return false
	}
	return true
}

func (c *Condition) compile() error {
	if c == nil || c.TextAbsent == "" {
		return nil
	}
	re, err := regexp.Compile(c.TextAbsent)
	if err != nil {
		return fmt.Errorf("%w: text_absent: %v", ErrInvalidTemplate, err)
	}
	c.textAbsent = re
	return nil
}

// Template is a registered remediation. Templates returned by a Registry are
// copies; the registry's own templates are never modified after Build.
type Template struct {
	// ID uniquely identifies the template.
	ID string

	// GateMatch names the gate(s) this template remediates.
	GateMatch string

	// ModuleID is the module the template belongs to.
	ModuleID string

	// Severity is the severity of the failures this template targets.
	Severity gates.Severity

	// Strategy is the remediation category.
	Strategy StrategyKind

	// Body is the text with {{field}} placeholders.
	Body string

	// Insertion selects where the body is applied.
	Insertion InsertionPoint

	// Priority orders templates within a strategy; higher applies first.
	Priority int32

	// SectionHeader is the header wrapping inserted text, or the section
	// moved by structural reorganization.
	SectionHeader string

	// Condition optionally restricts the template.
	Condition *Condition

	// SuccessRate is the historical share of applications that resolved the
	// gate, in [0, 1]. It feeds the confidence score.
	SuccessRate float64

	// Fields declares template-local placeholder defaults.
	Fields []Field

	placeholders []string
	pattern      *regexp.Regexp
}

// Placeholders returns the distinct placeholder names used by the body, in
// first-use order.
func (t Template) Placeholders() []string {
	return append([]string(nil), t.placeholders...)
}

// Pattern returns the compiled Replace pattern, or nil.
func (t Template) Pattern() *regexp.Regexp {
	return t.pattern
}

// MatchKind describes how a template was matched to a gate.
type MatchKind string

const (
	// MatchMapped means the explicit mapping table named the template.
	MatchMapped MatchKind = "mapped"
	// MatchExact means GateMatch equals the gate id.
	MatchExact MatchKind = "exact"
	// MatchSubstring means the fallback containment rule matched.
	MatchSubstring MatchKind = "substring"
)

// Strength returns how much a match kind is trusted, in [0, 1].
func (k MatchKind) Strength() float64 {
	switch k {
	case MatchMapped, MatchExact:
		return 1.0
	case MatchSubstring:
		return 0.5
	}
	return 0
}

// Candidate is a template found for a gate.
type Candidate struct {
	Template Template
	Kind     MatchKind

	// Ambiguous is set when the substring fallback matched templates bound
	// to different gate names.
	Ambiguous bool
}
