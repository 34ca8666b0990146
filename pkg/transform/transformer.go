package transform

import (
	"fmt"
	"log/slog"
	"regexp"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/remediation"
	"mercator-hq/gatekeeper/pkg/resolver"
)

// Config configures a Transformer.
type Config struct {
	// Weights combine the confidence factors.
	Weights Weights

	// SignaturePattern locates the signature block for before_signature
	// insertions. Empty means document.DefaultSignaturePattern.
	SignaturePattern string
}

// DefaultConfig returns the default transformer configuration.
func DefaultConfig() Config {
	return Config{
		Weights:          DefaultWeights(),
		SignaturePattern: document.DefaultSignaturePattern,
	}
}

// Deduplicator remembers which remediations were already applied to which
// document states within a run.
type Deduplicator interface {
	// Seen records the (hashBefore, signature) pair and reports whether it
	// had been recorded before.
	Seen(hashBefore, signature string) bool
}

// Input carries the per-call parameters of Apply.
type Input struct {
	// Iteration is the 1-based synthesis iteration.
	Iteration int

	// Context supplies placeholder values.
	Context remediation.Context

	// Dedup short-circuits repeated remediations. Optional.
	Dedup Deduplicator
}

// Transformer applies remediation plans. It holds no per-run state and is
// safe for concurrent use.
type Transformer struct {
	registry  *remediation.Registry
	weights   Weights
	signature *regexp.Regexp
	logger    *slog.Logger
}

// New creates a transformer that renders templates with registry.
func New(registry *remediation.Registry, cfg Config, logger *slog.Logger) (*Transformer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	pattern := cfg.SignaturePattern
	if pattern == "" {
		pattern = document.DefaultSignaturePattern
	}
	sig, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid signature pattern: %w", err)
	}
	return &Transformer{
		registry:  registry,
		weights:   cfg.Weights,
		signature: sig,
		logger:    logger.With("component", "transform"),
	}, nil
}

// Apply applies steps to doc strictly in order and returns the resulting
// document with one record per step.
func (t *Transformer) Apply(doc document.Document, steps []resolver.Resolved, in Input) (document.Document, []CorrectionRecord) {
	text := doc.Text()
	records := make([]CorrectionRecord, 0, len(steps))
	cursor := 0

	for i, step := range steps {
		before := document.HashString(text)
		rec := CorrectionRecord{
			GateID:           step.Result.GateID,
			ModuleID:         step.Result.ModuleID,
			TemplateID:       step.Template.ID,
			Severity:         step.Result.Severity,
			Strategy:         step.Template.Strategy,
			Insertion:        step.Template.Insertion,
			MatchKind:        step.MatchKind,
			Iteration:        in.Iteration,
			OrderInIteration: i,
			HashBefore:       before,
			HashAfter:        before,
		}

		if in.Dedup != nil && in.Dedup.Seen(before, step.Signature()) {
			rec.Note = NoteDuplicate
			rec.Confidence = t.weights.Score(step.MatchKind, step.Template.SuccessRate, 1)
			t.logger.Debug("duplicate remediation skipped",
				"gate_id", rec.GateID,
				"template_id", rec.TemplateID,
				"iteration", in.Iteration,
			)
			records = append(records, rec)
			continue
		}

		c, err := t.apply(text, step, in.Context, cursor)
		if err != nil {
			rec.Note = err.Error()
			t.logger.Warn("remediation not applied",
				"gate_id", rec.GateID,
				"template_id", rec.TemplateID,
				"error", err,
			)
			records = append(records, rec)
			continue
		}

		rec.Confidence = t.weights.Score(step.MatchKind, step.Template.SuccessRate, c.completeness)
		rec.Note = c.note
		if len(c.delta) > 0 {
			atStart := step.Template.Insertion.Kind == remediation.InsertStart
			cursor = advance(cursor, c.delta, atStart)
			text = c.text
			rec.Delta = c.delta
			rec.HashAfter = document.HashString(text)
		}
		records = append(records, rec)
	}

	return doc.WithText(text), records
}

// change is the outcome of applying one remediation.
type change struct {
	text         string
	delta        []Edit
	note         string
	completeness float64
}

func unchanged(text, note string, completeness float64) change {
	return change{text: text, note: note, completeness: completeness}
}

func (t *Transformer) apply(text string, step resolver.Resolved, ctx remediation.Context, start int) (change, error) {
	rendering, err := t.render(step, ctx)
	if err != nil {
		return change{}, err
	}
	tmpl := step.Template
	completeness := rendering.Completeness()

	var c change
	switch {
	case tmpl.Strategy == remediation.StrategyStructuralReorganization:
		c = t.reorganize(text, tmpl, rendering.Text, start)
	case tmpl.Insertion.Kind == remediation.InsertReplace:
		c = replaceAll(text, tmpl.Pattern(), rendering.Text)
	case tmpl.Insertion.Kind == remediation.InsertSection:
		c = fillSection(text, tmpl.Insertion.Header, rendering.Text)
	default:
		c = t.insert(text, tmpl, rendering.Text, start)
	}
	c.completeness = completeness
	return c, nil
}

// render produces the remediation text. Suggestion extraction prefers the
// gate's own suggested fix and falls back to the template body.
func (t *Transformer) render(step resolver.Resolved, ctx remediation.Context) (remediation.Rendering, error) {
	tmpl := step.Template
	if tmpl.Strategy == remediation.StrategySuggestionExtraction && step.Result.SuggestedFix != "" {
		r, err := t.registry.RenderText(tmpl, step.Result.SuggestedFix, ctx)
		if err == nil {
			return r, nil
		}
		t.logger.Warn("suggested fix not renderable, using template body",
			"gate_id", step.Result.GateID,
			"template_id", tmpl.ID,
			"error", err,
		)
	}
	return t.registry.RenderDetail(tmpl, ctx)
}
