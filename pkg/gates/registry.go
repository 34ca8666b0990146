package gates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mercator-hq/gatekeeper/pkg/document"
)

// Observer receives per-gate evaluation events. Implementations must be safe
// for concurrent use because gates run in parallel.
type Observer interface {
	GateEvaluated(result Result, duration time.Duration)
}

// Builder collects gate definitions before freezing them into a Registry.
// A Builder is not safe for concurrent use.
type Builder struct {
	defs     map[string]Definition
	modules  map[string]Module
	workers  int
	observer Observer
	logger   *slog.Logger
	errs     []error
	built    bool
}

// NewBuilder creates an empty builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		defs:    make(map[string]Definition),
		modules: make(map[string]Module),
		workers: runtime.GOMAXPROCS(0),
		logger:  logger,
	}
}

// WithWorkers sets the maximum number of gates evaluated concurrently.
// Values below one evaluate gates sequentially.
func (b *Builder) WithWorkers(n int) *Builder {
	if n < 1 {
		n = 1
	}
	b.workers = n
	return b
}

// WithObserver sets an observer notified after every gate evaluation.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observer = o
	return b
}

// RegisterModule declares a module. Modules referenced by gates but never
// declared are created implicitly with only an id.
func (b *Builder) RegisterModule(m Module) *Builder {
	if m.ID == "" {
		b.errs = append(b.errs, fmt.Errorf("%w: module id cannot be empty", ErrInvalidDefinition))
		return b
	}
	b.modules[m.ID] = m
	return b
}

// Register adds a gate definition. Errors are collected and reported by Build.
func (b *Builder) Register(def Definition) *Builder {
	if b.built {
		b.errs = append(b.errs, ErrRegistryBuilt)
		return b
	}
	switch {
	case def.ID == "":
		b.errs = append(b.errs, fmt.Errorf("%w: gate id cannot be empty", ErrInvalidDefinition))
		return b
	case def.ModuleID == "":
		b.errs = append(b.errs, fmt.Errorf("%w: gate %s has no module", ErrInvalidDefinition, def.ID))
		return b
	case !def.Severity.Valid():
		b.errs = append(b.errs, fmt.Errorf("%w: gate %s: %w", ErrInvalidDefinition, def.ID, ErrInvalidSeverity))
		return b
	case def.Evaluate == nil:
		b.errs = append(b.errs, fmt.Errorf("%w: gate %s has no evaluate function", ErrInvalidDefinition, def.ID))
		return b
	}
	if _, dup := b.defs[def.ID]; dup {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateGate, def.ID))
		return b
	}
	def.DocumentTypes = append([]string(nil), def.DocumentTypes...)
	b.defs[def.ID] = def
	if _, ok := b.modules[def.ModuleID]; !ok {
		b.modules[def.ModuleID] = Module{ID: def.ModuleID}
	}
	return b
}

// Build validates the collected definitions and returns an immutable registry.
func (b *Builder) Build() (*Registry, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	b.built = true

	defs := make([]Definition, 0, len(b.defs))
	for _, d := range b.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })

	modules := make(map[string]Module, len(b.modules))
	for id, m := range b.modules {
		modules[id] = m
	}

	return &Registry{
		defs:     defs,
		modules:  modules,
		workers:  b.workers,
		observer: b.observer,
		logger:   b.logger.With("component", "gates.registry"),
	}, nil
}

// Registry is an immutable, concurrency-safe set of gate definitions.
type Registry struct {
	defs     []Definition
	modules  map[string]Module
	workers  int
	observer Observer
	logger   *slog.Logger
}

// Len returns the number of registered gates.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Gate returns a gate definition by id.
func (r *Registry) Gate(id string) (Definition, bool) {
	i := sort.Search(len(r.defs), func(i int) bool { return r.defs[i].ID >= id })
	if i < len(r.defs) && r.defs[i].ID == id {
		return r.defs[i], true
	}
	return Definition{}, false
}

// GateIDs returns every registered gate id in sorted order.
func (r *Registry) GateIDs() []string {
	ids := make([]string, len(r.defs))
	for i, d := range r.defs {
		ids[i] = d.ID
	}
	return ids
}

// HasModule reports whether a module is known.
func (r *Registry) HasModule(id string) bool {
	_, ok := r.modules[id]
	return ok
}

// Modules returns all modules sorted by id.
func (r *Registry) Modules() []Module {
	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Select returns the definitions belonging to moduleIDs, in gate id order.
// An empty moduleIDs selects every gate.
func (r *Registry) Select(moduleIDs []string) []Definition {
	if len(moduleIDs) == 0 {
		return append([]Definition(nil), r.defs...)
	}
	want := make(map[string]bool, len(moduleIDs))
	for _, id := range moduleIDs {
		want[id] = true
	}
	var out []Definition
	for _, d := range r.defs {
		if want[d.ModuleID] {
			out = append(out, d)
		}
	}
	return out
}

// Evaluate runs every gate of the requested modules against doc. When
// moduleIDs is empty the document's own module ids are used, and when those
// are empty too every gate runs.
func (r *Registry) Evaluate(ctx context.Context, doc document.Document, moduleIDs []string) Report {
	if len(moduleIDs) == 0 {
		moduleIDs = doc.ModuleIDs()
	}
	defs := r.Select(moduleIDs)
	results := make([]Result, len(defs))

	g := errgroup.Group{}
	g.SetLimit(r.workers)
	for i, def := range defs {
		g.Go(func() error {
			results[i] = r.run(ctx, def, doc)
			return nil
		})
	}
	_ = g.Wait()

	return NewReport(results)
}

// run evaluates one gate, converting errors and panics into Warning results.
func (r *Registry) run(ctx context.Context, def Definition, doc document.Document) (res Result) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			res = r.warning(def, &EvaluationError{GateID: def.ID, Cause: &PanicError{Value: v}})
		}
		if r.observer != nil {
			r.observer.GateEvaluated(res, time.Since(start))
		}
	}()

	if !def.appliesTo(doc.DocumentType()) {
		return Result{
			GateID:   def.ID,
			ModuleID: def.ModuleID,
			Status:   StatusNotApplicable,
			Severity: def.Severity,
			Message:  fmt.Sprintf("not applicable to document type %q", doc.DocumentType()),
		}
	}

	out, err := def.Evaluate(ctx, doc)
	if err != nil {
		return r.warning(def, &EvaluationError{GateID: def.ID, Cause: err})
	}

	out.GateID = def.ID
	out.ModuleID = def.ModuleID
	out.Severity = def.Severity
	switch out.Status {
	case StatusPass, StatusFail, StatusWarning, StatusNotApplicable:
	default:
		return r.warning(def, &EvaluationError{GateID: def.ID, Cause: fmt.Errorf("unknown status %q", out.Status)})
	}
	return out
}

func (r *Registry) warning(def Definition, err error) Result {
	r.logger.Warn("gate evaluation error downgraded to warning",
		"gate_id", def.ID,
		"module_id", def.ModuleID,
		"error", err,
	)
	return Result{
		GateID:   def.ID,
		ModuleID: def.ModuleID,
		Status:   StatusWarning,
		Severity: def.Severity,
		Message:  err.Error(),
	}
}
