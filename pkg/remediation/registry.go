package remediation

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// Builder collects templates, shared fields and the mapping table before
// freezing them into a Registry. A Builder is not safe for concurrent use.
type Builder struct {
	templates map[string]Template
	order     []string
	fields    map[string]Field
	mappings  map[string][]string
	fallback  bool
	logger    *slog.Logger
	errs      []error
	built     bool
}

// NewBuilder creates a builder pre-loaded with StandardFields. The substring
// fallback is disabled until WithSubstringFallback enables it.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		templates: make(map[string]Template),
		fields:    make(map[string]Field),
		mappings:  make(map[string][]string),
		logger:    logger,
	}
	for _, f := range StandardFields {
		b.fields[f.Name] = f
	}
	return b
}

// WithSubstringFallback enables or disables the containment fallback.
func (b *Builder) WithSubstringFallback(enabled bool) *Builder {
	b.fallback = enabled
	return b
}

// DeclareField adds or overrides a shared field.
func (b *Builder) DeclareField(f Field) *Builder {
	if !fieldNamePattern.MatchString(f.Name) {
		b.errs = append(b.errs, fmt.Errorf("%w: invalid field name %q", ErrInvalidTemplate, f.Name))
		return b
	}
	b.fields[f.Name] = f
	return b
}

// Map binds gateID to templates in the explicit mapping table.
func (b *Builder) Map(gateID string, templateIDs ...string) *Builder {
	if gateID == "" {
		b.errs = append(b.errs, fmt.Errorf("%w: mapping with empty gate id", ErrInvalidTemplate))
		return b
	}
	for _, id := range templateIDs {
		if !slices.Contains(b.mappings[gateID], id) {
			b.mappings[gateID] = append(b.mappings[gateID], id)
		}
	}
	return b
}

// Register adds a template. Validation errors are collected and reported by
// Build.
func (b *Builder) Register(t Template) *Builder {
	if b.built {
		b.errs = append(b.errs, ErrRegistryBuilt)
		return b
	}
	if t.ID == "" {
		b.errs = append(b.errs, fmt.Errorf("%w: template id cannot be empty", ErrInvalidTemplate))
		return b
	}
	if _, dup := b.templates[t.ID]; dup {
		b.errs = append(b.errs, &TemplateError{TemplateID: t.ID, Cause: ErrDuplicateTemplate})
		return b
	}
	b.templates[t.ID] = t
	b.order = append(b.order, t.ID)
	return b
}

// Build validates every template against the field schema and the mapping
// table against the registered templates, and returns an immutable registry.
func (b *Builder) Build() (*Registry, error) {
	errs := append([]error(nil), b.errs...)

	templates := make(map[string]Template, len(b.templates))
	for _, id := range b.order {
		t, err := b.prepare(b.templates[id])
		if err != nil {
			errs = append(errs, &TemplateError{TemplateID: id, Cause: err})
			continue
		}
		templates[id] = t
	}

	mappings := make(map[string][]string, len(b.mappings))
	for gateID, ids := range b.mappings {
		for _, id := range ids {
			if _, ok := b.templates[id]; !ok {
				errs = append(errs, fmt.Errorf("%w: gate %s maps to %q", ErrUnknownTemplate, gateID, id))
			}
		}
		sorted := slices.Clone(ids)
		sort.Strings(sorted)
		mappings[gateID] = sorted
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	b.built = true

	byMatch := make(map[string][]string)
	ids := make([]string, 0, len(templates))
	for id, t := range templates {
		byMatch[t.GateMatch] = append(byMatch[t.GateMatch], id)
		ids = append(ids, id)
	}
	for k := range byMatch {
		sort.Strings(byMatch[k])
	}
	sort.Strings(ids)

	fields := make(map[string]Field, len(b.fields))
	for k, f := range b.fields {
		fields[k] = f
	}

	return &Registry{
		templates: templates,
		ids:       ids,
		byMatch:   byMatch,
		mappings:  mappings,
		fields:    fields,
		fallback:  b.fallback,
		logger:    b.logger.With("component", "remediation.registry"),
	}, nil
}

// prepare validates t and compiles its placeholders and pattern.
func (b *Builder) prepare(t Template) (Template, error) {
	if !t.Strategy.Valid() {
		return t, fmt.Errorf("%w: unknown strategy %q", ErrInvalidTemplate, t.Strategy)
	}
	if !t.Severity.Valid() {
		return t, fmt.Errorf("%w: invalid severity", ErrInvalidTemplate)
	}
	if t.GateMatch == "" {
		return t, fmt.Errorf("%w: gate match cannot be empty", ErrInvalidTemplate)
	}
	if t.SuccessRate < 0 || t.SuccessRate > 1 {
		return t, fmt.Errorf("%w: success rate %v outside [0, 1]", ErrInvalidTemplate, t.SuccessRate)
	}
	if err := validateInsertion(t); err != nil {
		return t, err
	}

	if t.Insertion.Kind == InsertReplace {
		re, err := regexp.Compile(t.Insertion.Pattern)
		if err != nil {
			return t, fmt.Errorf("%w: replace pattern: %v", ErrInvalidInsertion, err)
		}
		t.pattern = re
	}

	if t.Condition != nil {
		c := *t.Condition
		c.DocumentTypes = slices.Clone(c.DocumentTypes)
		c.RequiresContext = slices.Clone(c.RequiresContext)
		if err := c.compile(); err != nil {
			return t, err
		}
		t.Condition = &c
	}

	local := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if !fieldNamePattern.MatchString(f.Name) {
			return t, fmt.Errorf("%w: invalid field name %q", ErrInvalidTemplate, f.Name)
		}
		local[f.Name] = true
	}
	t.Fields = slices.Clone(t.Fields)

	names, err := parsePlaceholders(t.Body)
	if err != nil {
		return t, err
	}
	for _, name := range names {
		if _, ok := b.fields[name]; !ok && !local[name] {
			return t, fmt.Errorf("%w: {{%s}} has no field declaration or default", ErrUnknownPlaceholder, name)
		}
	}
	t.placeholders = names
	return t, nil
}

func validateInsertion(t Template) error {
	p := t.Insertion
	switch p.Kind {
	case InsertStart, InsertEnd, InsertBeforeSignature:
	case InsertSection:
		if strings.TrimSpace(p.Header) == "" {
			return fmt.Errorf("%w: section insertion needs a header", ErrInvalidInsertion)
		}
	case InsertReplace:
		if p.Pattern == "" {
			return fmt.Errorf("%w: replace insertion needs a pattern", ErrInvalidInsertion)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidInsertion, p.Kind)
	}

	switch t.Strategy {
	case StrategyRegexReplacement:
		if p.Kind != InsertReplace {
			return fmt.Errorf("%w: regex replacement requires a replace insertion point", ErrInvalidTemplate)
		}
	case StrategyStructuralReorganization:
		if p.Kind == InsertReplace {
			return fmt.Errorf("%w: structural reorganization cannot use a replace insertion point", ErrInvalidTemplate)
		}
		if t.SectionHeader == "" && p.Kind != InsertSection {
			return fmt.Errorf("%w: structural reorganization needs a section header", ErrInvalidTemplate)
		}
	case StrategyTemplateInsertion:
		if t.Body == "" {
			return fmt.Errorf("%w: template insertion needs a body", ErrInvalidTemplate)
		}
	}
	return nil
}

// Registry is an immutable catalog of remediation templates.
type Registry struct {
	templates map[string]Template
	ids       []string
	byMatch   map[string][]string
	mappings  map[string][]string
	fields    map[string]Field
	fallback  bool
	logger    *slog.Logger
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	return len(r.templates)
}

// Template returns a template by id.
func (r *Registry) Template(id string) (Template, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// Templates returns every template sorted by id.
func (r *Registry) Templates() []Template {
	out := make([]Template, len(r.ids))
	for i, id := range r.ids {
		out[i] = r.templates[id]
	}
	return out
}

// MappedGates returns the gate ids in the explicit mapping table, sorted.
func (r *Registry) MappedGates() []string {
	out := make([]string, 0, len(r.mappings))
	for id := range r.mappings {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Fields returns the shared field schema sorted by name.
func (r *Registry) Fields() []Field {
	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindCandidates returns the templates that can remediate gateID, sorted by
// template id. Mapped and exact matches are returned together; the substring
// fallback is consulted only when both are empty.
func (r *Registry) FindCandidates(gateID string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)

	for _, id := range r.mappings[gateID] {
		seen[id] = true
		out = append(out, Candidate{Template: r.templates[id], Kind: MatchMapped})
	}
	for _, id := range r.byMatch[gateID] {
		if !seen[id] {
			seen[id] = true
			out = append(out, Candidate{Template: r.templates[id], Kind: MatchExact})
		}
	}
	if len(out) > 0 || !r.fallback {
		sortCandidates(out)
		return out
	}

	gid := strings.ToLower(gateID)
	matchers := make(map[string]bool)
	for _, id := range r.ids {
		t := r.templates[id]
		m := strings.ToLower(t.GateMatch)
		if strings.Contains(gid, m) || strings.Contains(m, gid) {
			out = append(out, Candidate{Template: t, Kind: MatchSubstring})
			matchers[t.GateMatch] = true
		}
	}
	if len(matchers) > 1 {
		names := make([]string, 0, len(matchers))
		for m := range matchers {
			names = append(names, m)
		}
		sort.Strings(names)
		r.logger.Warn("ambiguous substring remediation match",
			"gate_id", gateID,
			"gate_matches", names,
		)
		for i := range out {
			out[i].Ambiguous = true
		}
	}
	sortCandidates(out)
	return out
}

func sortCandidates(c []Candidate) {
	sort.Slice(c, func(i, j int) bool { return c[i].Template.ID < c[j].Template.ID })
}

// Render substitutes placeholders in t's body from ctx, falling back to the
// template's own field defaults and then the shared schema.
func (r *Registry) Render(t Template, ctx Context) (string, error) {
	out, err := r.RenderDetail(t, ctx)
	return out.Text, err
}

// RenderDetail is Render plus how many placeholders the caller supplied.
func (r *Registry) RenderDetail(t Template, ctx Context) (Rendering, error) {
	return r.RenderText(t, t.Body, ctx)
}

// RenderText renders an arbitrary text (for example a gate's suggested fix)
// with t's field schema. Placeholders without a field or default are an
// error, since the text was not validated at registration.
func (r *Registry) RenderText(t Template, text string, ctx Context) (Rendering, error) {
	names, err := parsePlaceholders(text)
	if err != nil {
		return Rendering{}, &TemplateError{TemplateID: t.ID, Cause: err}
	}

	local := make(map[string]Field, len(t.Fields))
	for _, f := range t.Fields {
		local[f.Name] = f
	}

	supplied := 0
	for _, name := range names {
		_, inLocal := local[name]
		_, inShared := r.fields[name]
		if !inLocal && !inShared {
			return Rendering{}, &TemplateError{TemplateID: t.ID, Cause: fmt.Errorf("%w: {{%s}}", ErrUnknownPlaceholder, name)}
		}
		if _, ok := ctx[name]; ok {
			supplied++
		}
	}

	rendered := substitute(text, func(name string) string {
		if v, ok := ctx[name]; ok {
			return v
		}
		if f, ok := local[name]; ok {
			return f.Default
		}
		return r.fields[name].Default
	})

	return Rendering{Text: rendered, Placeholders: len(names), Supplied: supplied}, nil
}
