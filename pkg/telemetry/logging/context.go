package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	runKey contextKey = iota
	policyKey
	loggerKey
)

type runInfo struct {
	id           string
	documentType string
}

// WithRun attaches a synthesis run id and document type to ctx.
func WithRun(ctx context.Context, runID, documentType string) context.Context {
	return context.WithValue(ctx, runKey, runInfo{id: runID, documentType: documentType})
}

// RunID returns the run id attached to ctx.
func RunID(ctx context.Context) string {
	if r, ok := ctx.Value(runKey).(runInfo); ok {
		return r.id
	}
	return ""
}

// WithPolicyVersion attaches the active policy version to ctx.
func WithPolicyVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, policyKey, version)
}

// PolicyVersion returns the policy version attached to ctx.
func PolicyVersion(ctx context.Context) string {
	v, _ := ctx.Value(policyKey).(string)
	return v
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Attrs returns the run-scoped attributes carried by ctx.
func Attrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if r, ok := ctx.Value(runKey).(runInfo); ok {
		attrs = append(attrs, slog.String("run_id", r.id))
		if r.documentType != "" {
			attrs = append(attrs, slog.String("document_type", r.documentType))
		}
	}
	if v := PolicyVersion(ctx); v != "" {
		attrs = append(attrs, slog.String("policy_version", v))
	}
	return attrs
}

// contextHandler adds Attrs(ctx) to every record.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		r.AddAttrs(Attrs(ctx)...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
