package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/remediation"
)

// Gate kinds supported by bundles.
const (
	KindRequiredPattern  = "required_pattern"
	KindForbiddenPattern = "forbidden_pattern"
	KindRequiredSection  = "required_section"
	KindMaxLength        = "max_length"
	KindSemantic         = "semantic"
)

// Bundle is the declarative form of a policy.
type Bundle struct {
	// Version is the author's label for the bundle. It is informational;
	// Fingerprint identifies the content.
	Version string `yaml:"version,omitempty"`

	Modules      []ModuleSpec        `yaml:"modules,omitempty"`
	Gates        []GateSpec          `yaml:"gates,omitempty"`
	Fields       []remediation.Field `yaml:"fields,omitempty"`
	Remediations []TemplateSpec      `yaml:"remediations,omitempty"`

	// Mappings is the explicit gate id to template ids table.
	Mappings map[string][]string `yaml:"mappings,omitempty"`

	// Sources lists the files the bundle was read from.
	Sources []string `yaml:"-"`

	// Revision is the git commit the bundle was read at, if any.
	Revision string `yaml:"-"`
}

// ModuleSpec declares a module.
type ModuleSpec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// GateSpec declares a gate evaluated by one of the built-in kinds.
type GateSpec struct {
	ID            string         `yaml:"id"`
	Module        string         `yaml:"module"`
	Severity      gates.Severity `yaml:"severity"`
	Description   string         `yaml:"description,omitempty"`
	DocumentTypes []string       `yaml:"document_types,omitempty"`

	// Kind selects the evaluator: required_pattern, forbidden_pattern,
	// required_section, max_length or semantic.
	Kind string `yaml:"kind"`

	Pattern   string        `yaml:"pattern,omitempty"`
	Section   string        `yaml:"section,omitempty"`
	Limit     int           `yaml:"limit,omitempty"`
	Question  string        `yaml:"question,omitempty"`
	Threshold float64       `yaml:"threshold,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`

	Message    string `yaml:"message,omitempty"`
	Suggestion string `yaml:"suggestion,omitempty"`
}

// TemplateSpec declares a remediation template.
type TemplateSpec struct {
	ID            string                     `yaml:"id"`
	Gate          string                     `yaml:"gate"`
	Module        string                     `yaml:"module,omitempty"`
	Severity      gates.Severity             `yaml:"severity"`
	Strategy      remediation.StrategyKind   `yaml:"strategy"`
	Body          string                     `yaml:"body,omitempty"`
	Insertion     remediation.InsertionPoint `yaml:"insertion"`
	Priority      int32                      `yaml:"priority,omitempty"`
	SectionHeader string                     `yaml:"section_header,omitempty"`
	Condition     *remediation.Condition     `yaml:"condition,omitempty"`
	SuccessRate   float64                    `yaml:"success_rate,omitempty"`
	Fields        []remediation.Field        `yaml:"fields,omitempty"`
}

// Template converts the spec into a registry template.
func (s TemplateSpec) Template() remediation.Template {
	return remediation.Template{
		ID:            s.ID,
		GateMatch:     s.Gate,
		ModuleID:      s.Module,
		Severity:      s.Severity,
		Strategy:      s.Strategy,
		Body:          s.Body,
		Insertion:     s.Insertion,
		Priority:      s.Priority,
		SectionHeader: s.SectionHeader,
		Condition:     s.Condition,
		SuccessRate:   s.SuccessRate,
		Fields:        s.Fields,
	}
}

// Parse decodes one bundle file. Unknown keys are rejected.
func Parse(name string, data []byte) (*Bundle, error) {
	var b Bundle
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return &Bundle{Sources: []string{name}}, nil
		}
		return nil, &BundleError{File: name, Cause: fmt.Errorf("%w: %v", ErrInvalidBundle, err)}
	}
	b.Sources = []string{name}
	return &b, nil
}

// Merge combines bundles in order. Lists are concatenated, mappings are
// unioned and the last non-empty version wins. Duplicate module, gate,
// field or template ids are errors.
func Merge(bundles ...*Bundle) (*Bundle, error) {
	out := &Bundle{Mappings: make(map[string][]string)}
	modules := make(map[string]string)
	gateIDs := make(map[string]string)
	fields := make(map[string]string)
	templates := make(map[string]string)

	var errs []error
	dup := func(seen map[string]string, kind, id, file string) bool {
		if prev, ok := seen[id]; ok {
			errs = append(errs, &BundleError{
				File:  file,
				Item:  kind + " " + id,
				Cause: fmt.Errorf("%w: already declared in %s", ErrInvalidBundle, prev),
			})
			return true
		}
		seen[id] = file
		return false
	}

	for _, b := range bundles {
		if b == nil {
			continue
		}
		file := ""
		if len(b.Sources) > 0 {
			file = b.Sources[0]
		}
		if b.Version != "" {
			out.Version = b.Version
		}
		for _, m := range b.Modules {
			if !dup(modules, "module", m.ID, file) {
				out.Modules = append(out.Modules, m)
			}
		}
		for _, g := range b.Gates {
			if !dup(gateIDs, "gate", g.ID, file) {
				out.Gates = append(out.Gates, g)
			}
		}
		for _, f := range b.Fields {
			if !dup(fields, "field", f.Name, file) {
				out.Fields = append(out.Fields, f)
			}
		}
		for _, t := range b.Remediations {
			if !dup(templates, "template", t.ID, file) {
				out.Remediations = append(out.Remediations, t)
			}
		}
		for gate, ids := range b.Mappings {
			for _, id := range ids {
				if !slices.Contains(out.Mappings[gate], id) {
					out.Mappings[gate] = append(out.Mappings[gate], id)
				}
			}
		}
		out.Sources = append(out.Sources, b.Sources...)
		if b.Revision != "" {
			out.Revision = b.Revision
		}
	}
	if len(out.Mappings) == 0 {
		out.Mappings = nil
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Fingerprint returns a SHA-256 over the canonical YAML encoding of the
// bundle. Formatting, comments and file layout do not affect it.
func (b *Bundle) Fingerprint() (string, error) {
	data, err := yaml.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to encode bundle: %w", err)
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
