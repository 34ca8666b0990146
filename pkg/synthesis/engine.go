package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/guard"
	"mercator-hq/gatekeeper/pkg/remediation"
	"mercator-hq/gatekeeper/pkg/resolver"
	"mercator-hq/gatekeeper/pkg/transform"
)

// Config configures an Engine.
type Config struct {
	// MaxIterations is the default iteration bound.
	// Default: DefaultMaxIterations
	MaxIterations int

	// PolicyVersion identifies the registries (usually the policy bundle
	// fingerprint). It is copied into results and audit entries.
	PolicyVersion string

	// RetainText stores input and final text in audit entries so the chain
	// can be replayed.
	RetainText bool

	// Transform configures confidence weights and signature detection.
	Transform transform.Config
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Transform:     transform.DefaultConfig(),
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithObserver registers an observer for finished runs.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithSink records every finished run to an audit sink.
func WithSink(s audit.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithTracer sets the tracer used for run and iteration spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine runs synthesis against immutable registries. It is safe for
// concurrent use; each call keeps its own state.
type Engine struct {
	gates       *gates.Registry
	resolver    *resolver.Resolver
	transformer *transform.Transformer
	config      Config
	observers   []Observer
	sink        audit.Sink
	tracer      trace.Tracer
	logger      *slog.Logger
}

// New creates an engine.
func New(gateRegistry *gates.Registry, remediations *remediation.Registry, cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if gateRegistry == nil || remediations == nil {
		return nil, fmt.Errorf("%w: registries are required", ErrInvalidRequest)
	}
	if cfg.MaxIterations < 0 {
		return nil, fmt.Errorf("%w: max iterations cannot be negative", ErrInvalidRequest)
	}
	if cfg.Transform.Weights == (transform.Weights{}) {
		cfg.Transform.Weights = transform.DefaultWeights()
	}

	tr, err := transform.New(remediations, cfg.Transform, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		gates:       gateRegistry,
		resolver:    resolver.New(remediations, logger),
		transformer: tr,
		config:      cfg,
		tracer:      noop.NewTracerProvider().Tracer("gatekeeper/synthesis"),
		logger:      logger.With("component", "synthesis"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// PolicyVersion returns the configured policy version.
func (e *Engine) PolicyVersion() string {
	return e.config.PolicyVersion
}

// Synthesize runs the loop for one document. Converged, NeedsReview and
// Stalled are all returned as results; an error means the request was
// invalid or ctx was cancelled between iterations.
func (e *Engine) Synthesize(ctx context.Context, req Request) (*Result, error) {
	maxIter := e.config.MaxIterations
	if req.MaxIterations != nil {
		maxIter = *req.MaxIterations
	}
	if maxIter < 0 {
		return nil, fmt.Errorf("%w: max iterations cannot be negative", ErrInvalidRequest)
	}

	started := time.Now()
	doc := document.New(req.Text, document.Metadata{
		DocumentType: req.DocumentType,
		ModuleIDs:    req.ModuleIDs,
	})
	res := &Result{
		RunID:         uuid.NewString(),
		PolicyVersion: e.config.PolicyVersion,
		InputHash:     doc.Hash(),
		StartedAt:     started,
	}
	logger := e.logger.With("run_id", res.RunID, "document_type", req.DocumentType)

	ctx, span := e.tracer.Start(ctx, "synthesis.Synthesize", trace.WithAttributes(
		attribute.String("gatekeeper.run_id", res.RunID),
		attribute.String("gatekeeper.document_type", req.DocumentType),
		attribute.String("gatekeeper.policy_version", e.config.PolicyVersion),
		attribute.Int("gatekeeper.max_iterations", maxIter),
	))
	defer span.End()

	g := guard.New()
	report := e.gates.Evaluate(ctx, doc, req.ModuleIDs)
	var prevFailing []string
	progressed := false

	for {
		failing := report.FailingIDs()
		if len(failing) == 0 {
			res.Outcome = OutcomeConverged
			break
		}
		if res.IterationsUsed > 0 && !progressed && slices.Equal(failing, prevFailing) {
			res.Outcome = OutcomeStalled
			logger.InfoContext(ctx, "synthesis stalled",
				"iteration", res.IterationsUsed,
				"failing", failing,
			)
			break
		}
		if res.IterationsUsed >= maxIter {
			res.Outcome = OutcomeNeedsReview
			break
		}
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			logger.InfoContext(ctx, "synthesis cancelled", "iteration", res.IterationsUsed)
			return nil, fmt.Errorf("%w after %d iterations: %w", ErrCancelled, res.IterationsUsed, err)
		}

		plan := e.resolver.Resolve(doc, report.Failures(), req.Context)
		res.Unresolved = plan.Unresolved
		if plan.Empty() {
			res.Outcome = OutcomeNeedsReview
			logger.InfoContext(ctx, "no remediation available",
				"iteration", res.IterationsUsed,
				"unresolved", plan.Unresolved,
			)
			break
		}

		res.IterationsUsed++
		iterCtx, iterSpan := e.tracer.Start(ctx, "synthesis.iteration", trace.WithAttributes(
			attribute.Int("gatekeeper.iteration", res.IterationsUsed),
			attribute.Int("gatekeeper.failing", len(failing)),
			attribute.Int("gatekeeper.steps", len(plan.Steps)),
		))

		next, records := e.transformer.Apply(doc, plan.Steps, transform.Input{
			Iteration: res.IterationsUsed,
			Context:   req.Context,
			Dedup:     g,
		})
		res.Corrections = append(res.Corrections, records...)
		progressed = anyChanged(records)
		prevFailing = failing
		doc = next

		report = e.gates.Evaluate(iterCtx, doc, req.ModuleIDs)
		iterSpan.SetAttributes(attribute.Int("gatekeeper.failing_after", len(report.FailingIDs())))
		iterSpan.End()

		logger.DebugContext(ctx, "iteration applied",
			"iteration", res.IterationsUsed,
			"corrections", len(records),
			"changed", progressed,
			"failing_before", len(failing),
			"failing_after", len(report.FailingIDs()),
		)
	}

	res.FinalDocument = doc
	res.FinalReport = report
	if res.Outcome != OutcomeConverged {
		res.ResidualFailures = report.Failures()
	}
	res.Duration = time.Since(started)

	span.SetAttributes(
		attribute.String("gatekeeper.outcome", string(res.Outcome)),
		attribute.Int("gatekeeper.iterations_used", res.IterationsUsed),
		attribute.Int("gatekeeper.corrections", len(res.Corrections)),
	)
	logger.InfoContext(ctx, "synthesis completed",
		"outcome", res.Outcome,
		"iterations", res.IterationsUsed,
		"corrections", len(res.Corrections),
		"changes", res.Changes(),
		"residual", len(res.ResidualFailures),
		"duplicates", g.Duplicates(),
		"duration", res.Duration,
	)

	e.record(ctx, req, res, logger)
	for _, o := range e.observers {
		o.SynthesisCompleted(res)
	}
	return res, nil
}

// record sends the run to the audit sink. Failures are logged only.
func (e *Engine) record(ctx context.Context, req Request, res *Result, logger *slog.Logger) {
	if e.sink == nil {
		return
	}
	entry := NewAuditEntry(req, res, e.config.RetainText)
	if err := e.sink.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("failed to record audit entry", "error", err)
	}
}

// NewAuditEntry converts a finished run into an audit entry.
func NewAuditEntry(req Request, res *Result, retainText bool) *audit.Entry {
	entry := &audit.Entry{
		RunID:          res.RunID,
		CreatedAt:      res.StartedAt,
		DocumentType:   req.DocumentType,
		ModuleIDs:      slices.Clone(req.ModuleIDs),
		PolicyVersion:  res.PolicyVersion,
		Outcome:        string(res.Outcome),
		IterationsUsed: res.IterationsUsed,
		InputHash:      res.InputHash,
		FinalHash:      res.FinalHash(),
		Residual:       failingIDs(res.ResidualFailures),
		Corrections:    slices.Clone(res.Corrections),
	}
	if retainText {
		entry.InputText = req.Text
		entry.FinalText = res.FinalDocument.Text()
	}
	return entry
}

func anyChanged(records []transform.CorrectionRecord) bool {
	for _, r := range records {
		if r.Changed() {
			return true
		}
	}
	return false
}

func failingIDs(results []gates.Result) []string {
	if len(results) == 0 {
		return nil
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.GateID
	}
	return out
}
