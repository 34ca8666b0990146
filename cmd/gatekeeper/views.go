package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/synthesis"
	"mercator-hq/gatekeeper/pkg/transform"
)

// runView is the printable form of a synthesis result.
type runView struct {
	RunID          string                       `json:"run_id"`
	PolicyVersion  string                       `json:"policy_version"`
	Outcome        synthesis.Outcome            `json:"outcome"`
	IterationsUsed int                          `json:"iterations_used"`
	InputHash      string                       `json:"input_hash"`
	FinalHash      string                       `json:"final_hash"`
	OverallRisk    gates.Severity               `json:"overall_risk"`
	Corrections    []transform.CorrectionRecord `json:"corrections"`
	Residual       []gates.Result               `json:"residual_failures,omitempty"`
	Unresolved     []string                     `json:"unresolved,omitempty"`
	DurationMS     int64                        `json:"duration_ms"`
	FinalText      string                       `json:"final_text,omitempty"`
}

func newRunView(res *synthesis.Result, withText bool) runView {
	v := runView{
		RunID:          res.RunID,
		PolicyVersion:  res.PolicyVersion,
		Outcome:        res.Outcome,
		IterationsUsed: res.IterationsUsed,
		InputHash:      res.InputHash,
		FinalHash:      res.FinalHash(),
		OverallRisk:    res.FinalReport.OverallRisk,
		Corrections:    res.Corrections,
		Residual:       res.ResidualFailures,
		Unresolved:     res.Unresolved,
		DurationMS:     res.Duration.Milliseconds(),
	}
	if withText {
		v.FinalText = res.FinalDocument.Text()
	}
	return v
}

func (v runView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run:        %s\n", v.RunID)
	fmt.Fprintf(&sb, "Policy:     %s\n", v.PolicyVersion)
	fmt.Fprintf(&sb, "Outcome:    %s after %d iteration(s)\n", v.Outcome, v.IterationsUsed)
	fmt.Fprintf(&sb, "Final hash: %s\n", v.FinalHash)

	if len(v.Corrections) > 0 {
		sb.WriteString("\nCorrections:\n")
		for _, c := range v.Corrections {
			mark := "✓"
			if !c.Changed() {
				mark = "·"
			}
			fmt.Fprintf(&sb, "  %s [%d.%d] %s via %s (%s, confidence %.2f)",
				mark, c.Iteration, c.OrderInIteration, c.GateID, c.TemplateID, c.Strategy, c.Confidence)
			if c.Note != "" {
				fmt.Fprintf(&sb, " - %s", c.Note)
			}
			sb.WriteString("\n")
		}
	}
	if len(v.Residual) > 0 {
		sb.WriteString("\nRemaining failures:\n")
		for _, r := range v.Residual {
			fmt.Fprintf(&sb, "  ✗ %s [%s] %s\n", r.GateID, r.Severity, r.Message)
		}
	}
	if len(v.Unresolved) > 0 {
		fmt.Fprintf(&sb, "\nNo remediation for: %s\n", strings.Join(v.Unresolved, ", "))
	}
	if v.FinalText != "" {
		sb.WriteString("\n--- final document ---\n")
		sb.WriteString(v.FinalText)
	}
	return sb.String()
}

// reportTable renders a gate report.
type reportTable gates.Report

func (t reportTable) Header() []string {
	return []string{"GATE", "MODULE", "SEVERITY", "STATUS", "MESSAGE"}
}

func (t reportTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Results))
	for _, r := range t.Results {
		rows = append(rows, []string{r.GateID, r.ModuleID, r.Severity.String(), string(r.Status), r.Message})
	}
	return rows
}

// batchTable renders batch results.
type batchTable []batchRow

type batchRow struct {
	ID          string `json:"id"`
	RunID       string `json:"run_id,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Iterations  int    `json:"iterations_used"`
	Corrections int    `json:"corrections"`
	Residual    int    `json:"residual_failures"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (t batchTable) Header() []string {
	return []string{"DOCUMENT", "OUTCOME", "ITERATIONS", "CORRECTIONS", "RESIDUAL", "ERROR"}
}

func (t batchTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.ID, r.Outcome, strconv.Itoa(r.Iterations), strconv.Itoa(r.Corrections), strconv.Itoa(r.Residual), r.Error,
		})
	}
	return rows
}

// auditTable renders audit entries.
type auditTable []*audit.Entry

func (t auditTable) Header() []string {
	return []string{"RUN", "CREATED", "TYPE", "OUTCOME", "ITERATIONS", "CORRECTIONS", "POLICY"}
}

func (t auditTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			e.RunID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.DocumentType,
			e.Outcome,
			strconv.Itoa(e.IterationsUsed),
			strconv.Itoa(len(e.Corrections)),
			shortHash(e.PolicyVersion),
		})
	}
	return rows
}

// shortHash trims a "sha256:<hex>" fingerprint for display.
func shortHash(h string) string {
	if rest, ok := strings.CutPrefix(h, "sha256:"); ok && len(rest) > 12 {
		return "sha256:" + rest[:12]
	}
	return h
}
