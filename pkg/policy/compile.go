package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/remediation"
	"mercator-hq/gatekeeper/pkg/semantic"
)

// CompileOptions configures registry construction.
type CompileOptions struct {
	// Analyzer serves semantic gates. Nil uses semantic.Disabled, so those
	// gates report warnings.
	Analyzer semantic.Analyzer

	// GateWorkers bounds concurrent gate evaluation. Zero keeps the
	// registry default.
	GateWorkers int

	// GateObserver is notified of every gate evaluation.
	GateObserver gates.Observer

	// SubstringFallback enables containment matching of template gate ids.
	SubstringFallback bool

	Logger *slog.Logger
}

// Policy is a compiled bundle.
type Policy struct {
	Bundle       *Bundle
	Gates        *gates.Registry
	Remediations *remediation.Registry

	// Version is the bundle fingerprint.
	Version string
}

// Compile validates b and builds its registries. Every problem found is
// reported, joined into one error.
func Compile(b *Bundle, opts CompileOptions) (*Policy, error) {
	if b == nil {
		return nil, &BundleError{Cause: fmt.Errorf("%w: bundle is nil", ErrInvalidBundle)}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = semantic.Disabled
	}

	var errs []error
	gb := gates.NewBuilder(logger)
	if opts.GateWorkers > 0 {
		gb.WithWorkers(opts.GateWorkers)
	}
	if opts.GateObserver != nil {
		gb.WithObserver(opts.GateObserver)
	}
	for _, m := range b.Modules {
		gb.RegisterModule(gates.Module{ID: m.ID, Name: m.Name, Description: m.Description})
	}
	declared := make(map[string]bool, len(b.Gates))
	for _, spec := range b.Gates {
		declared[spec.ID] = true
		eval, err := evaluator(spec, analyzer)
		if err != nil {
			errs = append(errs, &BundleError{Item: "gate " + spec.ID, Cause: err})
			continue
		}
		gb.Register(gates.Definition{
			ID:            spec.ID,
			ModuleID:      spec.Module,
			Severity:      spec.Severity,
			Description:   spec.Description,
			DocumentTypes: spec.DocumentTypes,
			Evaluate:      eval,
		})
	}
	gateRegistry, err := gb.Build()
	if err != nil {
		errs = append(errs, &BundleError{Item: "gates", Cause: err})
	}

	rb := remediation.NewBuilder(logger).WithSubstringFallback(opts.SubstringFallback)
	for _, f := range b.Fields {
		rb.DeclareField(f)
	}
	for _, spec := range b.Remediations {
		rb.Register(spec.Template())
	}
	for gate, ids := range b.Mappings {
		if !declared[gate] {
			errs = append(errs, &BundleError{
				Item:  "mapping " + gate,
				Cause: fmt.Errorf("%w: gate %q is not declared", ErrInvalidBundle, gate),
			})
			continue
		}
		rb.Map(gate, ids...)
	}
	remediations, err := rb.Build()
	if err != nil {
		errs = append(errs, &BundleError{Item: "remediations", Cause: err})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	version, err := b.Fingerprint()
	if err != nil {
		return nil, &BundleError{Cause: err}
	}
	logger.Info("policy compiled",
		"component", "policy",
		"version", version,
		"label", b.Version,
		"gates", gateRegistry.Len(),
		"templates", remediations.Len(),
		"sources", len(b.Sources),
	)
	return &Policy{
		Bundle:       b,
		Gates:        gateRegistry,
		Remediations: remediations,
		Version:      version,
	}, nil
}

func evaluator(spec GateSpec, analyzer semantic.Analyzer) (gates.EvaluateFunc, error) {
	switch spec.Kind {
	case KindRequiredPattern, KindForbiddenPattern:
		if spec.Pattern == "" {
			return nil, fmt.Errorf("%w: %s gate needs a pattern", ErrInvalidBundle, spec.Kind)
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern: %v", ErrInvalidBundle, err)
		}
		if spec.Kind == KindRequiredPattern {
			return gates.RequirePattern(re, spec.Message, spec.Suggestion), nil
		}
		return gates.ForbidPattern(re, spec.Message, spec.Suggestion), nil

	case KindRequiredSection:
		if strings.TrimSpace(spec.Section) == "" {
			return nil, fmt.Errorf("%w: required_section gate needs a section", ErrInvalidBundle)
		}
		return gates.RequireSection(spec.Section, spec.Message, spec.Suggestion), nil

	case KindMaxLength:
		if spec.Limit <= 0 {
			return nil, fmt.Errorf("%w: max_length gate needs a positive limit", ErrInvalidBundle)
		}
		return gates.MaxLength(spec.Limit, spec.Message), nil

	case KindSemantic:
		if spec.Question == "" {
			return nil, fmt.Errorf("%w: semantic gate needs a question", ErrInvalidBundle)
		}
		if spec.Threshold < 0 || spec.Threshold > 1 {
			return nil, fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalidBundle, spec.Threshold)
		}
		return gates.Semantic(analyzer, gates.SemanticConfig{
			Question:   spec.Question,
			Threshold:  spec.Threshold,
			Timeout:    spec.Timeout,
			Suggestion: spec.Suggestion,
		}), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGateKind, spec.Kind)
}

// Open loads the bundle described by src and compiles it.
func Open(ctx context.Context, src SourceConfig, opts CompileOptions) (*Policy, error) {
	b, err := Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return Compile(b, opts)
}
