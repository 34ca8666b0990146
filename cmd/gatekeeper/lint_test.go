package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/policy"
)

func TestLint_Valid(t *testing.T) {
	out, err := execute(t, "", "lint", "--config", testConfig(t), "--format", "json")
	if err != nil {
		t.Fatalf("lint returned error: %v", err)
	}
	var res lintResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !res.Valid || res.Gates != 3 || res.Remediations != 2 {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasPrefix(res.Version, "sha256:") {
		t.Errorf("version = %q", res.Version)
	}
}

func TestLint_Invalid(t *testing.T) {
	out, err := execute(t, "", "lint", "--config", testConfig(t), "--policy", "testdata/invalid-policy.yaml")
	if got := cli.ExitCode(err); got != cli.ExitFailure {
		t.Fatalf("exit code = %d (%v), want %d", got, err, cli.ExitFailure)
	}
	if !cli.Silent(err) {
		t.Error("lint failures are printed, the error should be silent")
	}
	if !strings.Contains(out, "telepathy") || !strings.Contains(out, "missing_template") {
		t.Errorf("output should list every problem: %q", out)
	}
}

func TestLintBundle_MissingPath(t *testing.T) {
	res := lintBundle(context.Background(), policy.SourceConfig{Path: "testdata/nope"}, policy.CompileOptions{})
	if res.Valid || len(res.Problems) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestProblems(t *testing.T) {
	a, b, c := errors.New("a"), errors.New("b"), errors.New("c")
	err := errors.Join(a, fmt.Errorf("wrapped: %w", errors.Join(b, c)))

	got := problems(err)
	if strings.Join(got, "|") != "a|b|c" {
		t.Errorf("problems() = %v", got)
	}
	if got := problems(a); len(got) != 1 || got[0] != "a" {
		t.Errorf("problems(single) = %v", got)
	}
}

func TestDescribeSource(t *testing.T) {
	tests := []struct {
		src  policy.SourceConfig
		want string
	}{
		{policy.SourceConfig{Path: "policies"}, "policies"},
		{policy.SourceConfig{Type: policy.SourceGit, Git: policy.GitConfig{URL: "https://example.com/p.git"}}, "https://example.com/p.git@HEAD"},
		{policy.SourceConfig{Type: policy.SourceGit, Git: policy.GitConfig{URL: "repo", Ref: "v2"}}, "repo@v2"},
	}
	for _, tt := range tests {
		if got := describeSource(tt.src); got != tt.want {
			t.Errorf("describeSource() = %q, want %q", got, tt.want)
		}
	}
}
