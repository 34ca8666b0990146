package gates

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/semantic"
)

// RequirePattern fails when pattern does not match anywhere in the document.
func RequirePattern(pattern *regexp.Regexp, message, suggestion string) EvaluateFunc {
	return func(_ context.Context, doc document.Document) (Result, error) {
		if pattern.MatchString(doc.Text()) {
			return Result{Status: StatusPass}, nil
		}
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("required text matching %q not found", pattern.String())
		}
		return Result{Status: StatusFail, Message: msg, SuggestedFix: suggestion}, nil
	}
}

// ForbidPattern fails when pattern matches; every match is reported as a span.
func ForbidPattern(pattern *regexp.Regexp, message, suggestion string) EvaluateFunc {
	return func(_ context.Context, doc document.Document) (Result, error) {
		locs := pattern.FindAllStringIndex(doc.Text(), -1)
		if len(locs) == 0 {
			return Result{Status: StatusPass}, nil
		}
		spans := make([]document.Span, len(locs))
		for i, loc := range locs {
			spans[i] = document.Span{Start: loc[0], End: loc[1]}
		}
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("forbidden text matching %q found %d time(s)", pattern.String(), len(locs))
		}
		return Result{Status: StatusFail, Message: msg, MatchedSpans: spans, SuggestedFix: suggestion}, nil
	}
}

// RequireSection fails when the document has no section with the given
// header, or when the section body is blank.
func RequireSection(header, message, suggestion string) EvaluateFunc {
	return func(_ context.Context, doc document.Document) (Result, error) {
		text := doc.Text()
		s, ok := document.FindSection(text, header)
		if ok && strings.TrimSpace(s.Body(text)) != "" {
			return Result{Status: StatusPass, MatchedSpans: []document.Span{{Start: s.Start, End: s.End}}}, nil
		}
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("required section %q missing or empty", header)
		}
		return Result{Status: StatusFail, Message: msg, SuggestedFix: suggestion}, nil
	}
}

// MaxLength fails when the document is longer than limit bytes.
func MaxLength(limit int, message string) EvaluateFunc {
	return func(_ context.Context, doc document.Document) (Result, error) {
		n := len(doc.Text())
		if n <= limit {
			return Result{Status: StatusPass}, nil
		}
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("document length %d exceeds limit %d", n, limit)
		}
		return Result{Status: StatusFail, Message: msg}, nil
	}
}

// SemanticConfig configures a gate backed by the semantic-analysis service.
type SemanticConfig struct {
	// Question is the policy question asked of the service.
	Question string

	// Threshold is the minimum confidence for a violation verdict to fail
	// the gate. Lower-confidence violations are reported as warnings.
	Threshold float64

	// Timeout bounds the call. Zero means the caller's context alone.
	Timeout time.Duration

	// Suggestion is offered as SuggestedFix on failure.
	Suggestion string
}

// Semantic delegates the policy judgment to analyzer. Any service error or
// timeout produces a Warning naming the dependency failure, never a Fail and
// never a silent Pass.
func Semantic(analyzer semantic.Analyzer, cfg SemanticConfig) EvaluateFunc {
	return func(ctx context.Context, doc document.Document) (Result, error) {
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}

		finding, err := analyzer.Analyze(ctx, doc.Text(), cfg.Question)
		if err != nil {
			return Result{
				Status:  StatusWarning,
				Message: fmt.Sprintf("semantic analysis unavailable: %v", err),
			}, nil
		}

		switch finding.Verdict {
		case semantic.VerdictViolation:
			if finding.Confidence >= cfg.Threshold {
				return Result{
					Status:       StatusFail,
					Message:      rationale(finding, "semantic analysis reported a violation"),
					SuggestedFix: cfg.Suggestion,
				}, nil
			}
			return Result{
				Status:  StatusWarning,
				Message: fmt.Sprintf("possible violation below confidence threshold (%.2f < %.2f)", finding.Confidence, cfg.Threshold),
			}, nil
		case semantic.VerdictCompliant:
			return Result{Status: StatusPass, Message: finding.Rationale}, nil
		default:
			return Result{Status: StatusWarning, Message: rationale(finding, "semantic analysis inconclusive")}, nil
		}
	}
}

func rationale(f semantic.Finding, fallback string) string {
	if f.Rationale != "" {
		return f.Rationale
	}
	return fallback
}
