package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/synthesis"
)

func TestBatch(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "corrected")

	out, err := execute(t, "", "batch", "testdata/docs",
		"--config", testConfig(t), "--out-dir", outDir, "--quiet", "--format", "json", "--workers", "2")
	if got := cli.ExitCode(err); got != cli.ExitNeedsReview {
		t.Fatalf("exit code = %d (%v), want %d", got, err, cli.ExitNeedsReview)
	}

	var rows []batchRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	want := map[string]string{
		"testdata/docs/compliant.md": "converged",
		"testdata/docs/crypto.md":    "needs_review",
		"testdata/docs/promo.md":     "converged",
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i, r := range rows {
		if i > 0 && rows[i-1].ID > r.ID {
			t.Errorf("rows not in input order: %q before %q", rows[i-1].ID, r.ID)
		}
		if r.Outcome != want[r.ID] {
			t.Errorf("%s outcome = %q, want %q", r.ID, r.Outcome, want[r.ID])
		}
		if r.Error != "" {
			t.Errorf("%s error = %q", r.ID, r.Error)
		}
	}

	data, err := os.ReadFile(filepath.Join(outDir, "promo.md"))
	if err != nil {
		t.Fatalf("corrected document not written: %v", err)
	}
	if !strings.Contains(string(data), "Returns targeted.") {
		t.Errorf("corrected promo = %q", data)
	}
}

func TestBatch_AllConvergedWithProgress(t *testing.T) {
	out, err := execute(t, "", "batch", "testdata/docs/promo.md", "testdata/docs/compliant.md",
		"--config", testConfig(t))
	if err != nil {
		t.Fatalf("batch returned error: %v", err)
	}
	if !strings.HasPrefix(out, "DOCUMENT") || strings.Count(out, "converged") != 2 {
		t.Errorf("output = %q", out)
	}
}

func TestBatch_NoDocuments(t *testing.T) {
	_, err := execute(t, "", "batch", t.TempDir(), "--config", testConfig(t))
	if got := cli.ExitCode(err); got != cli.ExitUsage {
		t.Errorf("exit code = %d (%v), want %d", got, err, cli.ExitUsage)
	}
}

func TestWorstOutcome(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []synthesis.Outcome
		want     synthesis.Outcome
	}{
		{name: "empty", want: synthesis.OutcomeConverged},
		{name: "converged", outcomes: []synthesis.Outcome{synthesis.OutcomeConverged}, want: synthesis.OutcomeConverged},
		{
			name:     "review wins over converged",
			outcomes: []synthesis.Outcome{synthesis.OutcomeConverged, synthesis.OutcomeNeedsReview},
			want:     synthesis.OutcomeNeedsReview,
		},
		{
			name:     "stalled wins",
			outcomes: []synthesis.Outcome{synthesis.OutcomeStalled, synthesis.OutcomeNeedsReview},
			want:     synthesis.OutcomeStalled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := worstOutcome(tt.outcomes); got != tt.want {
				t.Errorf("worstOutcome() = %s, want %s", got, tt.want)
			}
		})
	}
}
