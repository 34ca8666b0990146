package gates

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/semantic"
)

func TestBuiltinGates(t *testing.T) {
	text := "# Offer\nGuaranteed returns! Truly guaranteed returns.\n\n## Risk Warning\n\n"
	doc := testDoc(text)

	tests := []struct {
		name       string
		eval       EvaluateFunc
		wantStatus Status
		wantSpans  int
	}{
		{
			name:       "require pattern missing",
			eval:       RequirePattern(regexp.MustCompile(`(?i)capital at risk`), "", "Capital at risk."),
			wantStatus: StatusFail,
		},
		{
			name:       "require pattern present",
			eval:       RequirePattern(regexp.MustCompile(`(?i)offer`), "", ""),
			wantStatus: StatusPass,
		},
		{
			name:       "forbid pattern reports every span",
			eval:       ForbidPattern(regexp.MustCompile(`(?i)guaranteed returns`), "", ""),
			wantStatus: StatusFail,
			wantSpans:  2,
		},
		{
			name:       "forbid pattern absent",
			eval:       ForbidPattern(regexp.MustCompile(`risk-free`), "", ""),
			wantStatus: StatusPass,
		},
		{
			name:       "empty section fails",
			eval:       RequireSection("Risk Warning", "", ""),
			wantStatus: StatusFail,
		},
		{
			name:       "non-empty section passes",
			eval:       RequireSection("Offer", "", ""),
			wantStatus: StatusPass,
			wantSpans:  1,
		},
		{
			name:       "max length exceeded",
			eval:       MaxLength(10, ""),
			wantStatus: StatusFail,
		},
		{
			name:       "max length ok",
			eval:       MaxLength(1000, ""),
			wantStatus: StatusPass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.eval(context.Background(), doc)
			if err != nil {
				t.Fatalf("evaluate error = %v", err)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v (%s)", res.Status, tt.wantStatus, res.Message)
			}
			if len(res.MatchedSpans) != tt.wantSpans {
				t.Errorf("len(MatchedSpans) = %d, want %d", len(res.MatchedSpans), tt.wantSpans)
			}
			if res.Status == StatusFail && res.Message == "" {
				t.Error("failures must carry a message")
			}
		})
	}
}

func TestForbidPattern_SpansPointAtMatches(t *testing.T) {
	doc := testDoc("a guaranteed b guaranteed")
	res, _ := ForbidPattern(regexp.MustCompile("guaranteed"), "", "")(context.Background(), doc)
	for _, s := range res.MatchedSpans {
		if got := s.Excerpt(doc.Text()); got != "guaranteed" {
			t.Errorf("span excerpt = %q", got)
		}
	}
}

func TestSemanticGate(t *testing.T) {
	tests := []struct {
		name       string
		finding    semantic.Finding
		err        error
		wantStatus Status
		wantMsg    string
	}{
		{
			name:       "violation above threshold fails",
			finding:    semantic.Finding{Verdict: semantic.VerdictViolation, Confidence: 0.9, Rationale: "overstates returns"},
			wantStatus: StatusFail,
			wantMsg:    "overstates returns",
		},
		{
			name:       "violation below threshold warns",
			finding:    semantic.Finding{Verdict: semantic.VerdictViolation, Confidence: 0.4},
			wantStatus: StatusWarning,
			wantMsg:    "below confidence threshold",
		},
		{
			name:       "compliant passes",
			finding:    semantic.Finding{Verdict: semantic.VerdictCompliant, Confidence: 0.9},
			wantStatus: StatusPass,
		},
		{
			name:       "uncertain warns",
			finding:    semantic.Finding{Verdict: semantic.VerdictUncertain},
			wantStatus: StatusWarning,
			wantMsg:    "inconclusive",
		},
		{
			name:       "service failure warns",
			err:        errors.New("connection refused"),
			wantStatus: StatusWarning,
			wantMsg:    "semantic analysis unavailable: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := semantic.AnalyzerFunc(func(context.Context, string, string) (semantic.Finding, error) {
				return tt.finding, tt.err
			})
			eval := Semantic(analyzer, SemanticConfig{Question: "Is it fair?", Threshold: 0.7})
			res, err := eval(context.Background(), testDoc("text"))
			if err != nil {
				t.Fatalf("evaluate error = %v", err)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", res.Status, tt.wantStatus)
			}
			if !strings.Contains(res.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want substring %q", res.Message, tt.wantMsg)
			}
		})
	}
}

func TestSemanticGate_TimeoutDegradesToWarning(t *testing.T) {
	slow := semantic.AnalyzerFunc(func(ctx context.Context, _, _ string) (semantic.Finding, error) {
		select {
		case <-ctx.Done():
			return semantic.Finding{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return semantic.Finding{Verdict: semantic.VerdictCompliant}, nil
		}
	})

	reg, err := NewBuilder(nil).
		Register(Definition{
			ID: "fair", ModuleID: "m", Severity: SeverityCritical,
			Evaluate: Semantic(slow, SemanticConfig{Question: "q", Threshold: 0.5, Timeout: 10 * time.Millisecond}),
		}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	start := time.Now()
	report := reg.Evaluate(context.Background(), document.New("x", document.Metadata{}), nil)
	if time.Since(start) > 2*time.Second {
		t.Fatal("semantic timeout did not bound evaluation")
	}
	res := report.Results[0]
	if res.Status != StatusWarning {
		t.Errorf("Status = %v, want warning", res.Status)
	}
	if !strings.Contains(res.Message, "deadline exceeded") {
		t.Errorf("Message = %q should name the timeout", res.Message)
	}
}
