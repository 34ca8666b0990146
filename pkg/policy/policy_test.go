package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/remediation"
)

const sampleBundle = `version: "2026.10"
modules:
  - id: cobs
    name: Conduct of Business
gates:
  - id: fair_clear_not_misleading
    module: cobs
    severity: critical
    kind: required_pattern
    pattern: (?i)capital at risk
    suggestion: Capital at risk.
  - id: no_guarantees
    module: cobs
    severity: high
    kind: forbidden_pattern
    pattern: (?i)guaranteed
  - id: complaints_section
    module: cobs
    severity: medium
    kind: required_section
    section: Complaints
  - id: concise
    module: cobs
    severity: low
    kind: max_length
    limit: 10000
  - id: balanced
    module: cobs
    severity: medium
    kind: semantic
    question: Is the promotion balanced?
    threshold: 0.7
    timeout: 2s
fields:
  - name: complaints_email
    default: complaints@example.com
remediations:
  - id: fcnm_risk_warning
    gate: fair_clear_not_misleading
    module: cobs
    severity: critical
    strategy: template_insertion
    insertion: start
    body: "Capital at risk. Issued by {{firm_name}}."
  - id: no_guarantees_rx
    gate: no_guarantees
    severity: high
    strategy: regex_replacement
    insertion: "replace:(?i)guaranteed"
    body: targeted
  - id: complaints
    gate: complaints_section
    severity: medium
    strategy: template_insertion
    insertion: "section:Complaints"
    body: "Write to {{complaints_email}}."
    condition:
      document_types: [promotion]
mappings:
  fair_clear_not_misleading: [fcnm_risk_warning]
`

func mustParse(t *testing.T, data string) *Bundle {
	t.Helper()
	b, err := Parse("test.yaml", []byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return b
}

func TestParse(t *testing.T) {
	b := mustParse(t, sampleBundle)

	if b.Version != "2026.10" || len(b.Gates) != 5 || len(b.Remediations) != 3 {
		t.Fatalf("bundle = version %q, %d gates, %d remediations", b.Version, len(b.Gates), len(b.Remediations))
	}
	if b.Gates[0].Severity != gates.SeverityCritical {
		t.Errorf("severity = %v, want critical", b.Gates[0].Severity)
	}
	if got := b.Remediations[1].Insertion; got != remediation.Replace("(?i)guaranteed") {
		t.Errorf("insertion = %v", got)
	}
	if got := b.Remediations[2].Insertion; got != remediation.Section("Complaints") {
		t.Errorf("insertion = %v", got)
	}
	if b.Gates[4].Timeout.Seconds() != 2 {
		t.Errorf("timeout = %v, want 2s", b.Gates[4].Timeout)
	}
	if !slices.Equal(b.Sources, []string{"test.yaml"}) {
		t.Errorf("Sources = %v", b.Sources)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "gatez: []\n"},
		{"bad severity", "gates:\n  - id: a\n    severity: extreme\n"},
		{"bad insertion", "remediations:\n  - id: a\n    insertion: middle\n"},
		{"not yaml", "gates: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.data))
			if !errors.Is(err, ErrInvalidBundle) {
				t.Errorf("error = %v, want ErrInvalidBundle", err)
			}
			var be *BundleError
			if !errors.As(err, &be) || be.File != "bad.yaml" {
				t.Errorf("error %v should be a BundleError naming the file", err)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	b := mustParse(t, "")
	if len(b.Gates) != 0 {
		t.Error("empty file should give an empty bundle")
	}
}

func TestCompile(t *testing.T) {
	p, err := Compile(mustParse(t, sampleBundle), CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if p.Gates.Len() != 5 || p.Remediations.Len() != 3 {
		t.Errorf("gates = %d, templates = %d", p.Gates.Len(), p.Remediations.Len())
	}
	if !strings.HasPrefix(p.Version, "sha256:") {
		t.Errorf("Version = %q", p.Version)
	}
	if !p.Gates.HasModule("cobs") {
		t.Error("module cobs not registered")
	}

	doc := document.New("Returns guaranteed.\n", document.Metadata{DocumentType: "promotion"})
	report := p.Gates.Evaluate(context.Background(), doc, nil)
	want := []string{"complaints_section", "fair_clear_not_misleading", "no_guarantees"}
	if got := report.FailingIDs(); !slices.Equal(got, want) {
		t.Errorf("FailingIDs() = %v, want %v", got, want)
	}
	if r, _ := report.Get("balanced"); r.Status != gates.StatusWarning {
		t.Errorf("semantic gate without analyzer = %s, want warning", r.Status)
	}

	if got := p.Remediations.MappedGates(); !slices.Equal(got, []string{"fair_clear_not_misleading"}) {
		t.Errorf("MappedGates() = %v", got)
	}
	tmpl, ok := p.Remediations.Template("complaints")
	if !ok {
		t.Fatal("template complaints missing")
	}
	text, err := p.Remediations.Render(tmpl, nil)
	if err != nil || text != "Write to complaints@example.com." {
		t.Errorf("RenderText() = %q, %v", text, err)
	}
}

func TestCompile_Errors(t *testing.T) {
	gate := func(extra string) string {
		return "gates:\n  - id: g\n    module: m\n    severity: high\n" + extra
	}
	tests := []struct {
		name   string
		bundle string
		target error
	}{
		{"unknown kind", gate("    kind: vibes\n"), ErrUnknownGateKind},
		{"missing pattern", gate("    kind: required_pattern\n"), ErrInvalidBundle},
		{"bad regex", gate("    kind: forbidden_pattern\n    pattern: \"(\"\n"), ErrInvalidBundle},
		{"missing section", gate("    kind: required_section\n"), ErrInvalidBundle},
		{"zero limit", gate("    kind: max_length\n"), ErrInvalidBundle},
		{"semantic without question", gate("    kind: semantic\n"), ErrInvalidBundle},
		{"semantic threshold", gate("    kind: semantic\n    question: q\n    threshold: 2\n"), ErrInvalidBundle},
		{"mapping to undeclared gate", gate("    kind: max_length\n    limit: 5\nmappings:\n  nope: [t]\n"), ErrInvalidBundle},
		{
			"mapping to unknown template",
			gate("    kind: max_length\n    limit: 5\nmappings:\n  g: [missing]\n"),
			remediation.ErrUnknownTemplate,
		},
		{
			"unknown placeholder",
			gate("    kind: max_length\n    limit: 5\nremediations:\n  - id: t\n    gate: g\n    severity: low\n    strategy: template_insertion\n    insertion: end\n    body: \"{{nobody}}\"\n"),
			remediation.ErrUnknownPlaceholder,
		},
		{"gate without severity", "gates:\n  - id: g\n    module: m\n    kind: max_length\n    limit: 5\n", gates.ErrInvalidDefinition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(mustParse(t, tt.bundle), CompileOptions{})
			if !errors.Is(err, tt.target) {
				t.Errorf("Compile() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestCompile_ReportsEveryProblem(t *testing.T) {
	b := mustParse(t, `gates:
  - id: a
    module: m
    severity: high
    kind: vibes
  - id: b
    module: m
    severity: high
    kind: required_pattern
mappings:
  ghost: [x]
`)
	_, err := Compile(b, CompileOptions{})
	if err == nil {
		t.Fatal("Compile() succeeded")
	}
	for _, want := range []string{"gate a", "gate b", "mapping ghost"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := mustParse(t, sampleBundle)
	reformatted := "# leading comment\n" + strings.ReplaceAll(sampleBundle, "pattern: (?i)guaranteed", "pattern: \"(?i)guaranteed\"  # quoted")
	b := mustParse(t, reformatted)
	changed := mustParse(t, strings.Replace(sampleBundle, "body: targeted", "body: aimed", 1))

	fa, err := a.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	fb, _ := b.Fingerprint()
	fc, _ := changed.Fingerprint()

	if fa != fb {
		t.Error("formatting and comments changed the fingerprint")
	}
	if fa == fc {
		t.Error("content change did not change the fingerprint")
	}
}

func TestMerge(t *testing.T) {
	one := mustParse(t, "version: a\ngates:\n  - id: g1\n    module: m\n    severity: low\n    kind: max_length\n    limit: 5\nmappings:\n  g1: [t1]\n")
	two := mustParse(t, "version: b\nmappings:\n  g1: [t1, t2]\n")
	three := mustParse(t, "gates:\n  - id: g2\n    module: m\n    severity: low\n    kind: max_length\n    limit: 5\n")

	merged, err := Merge(one, two, three)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if merged.Version != "b" {
		t.Errorf("Version = %q, want the last non-empty label", merged.Version)
	}
	if len(merged.Gates) != 2 || merged.Gates[0].ID != "g1" || merged.Gates[1].ID != "g2" {
		t.Errorf("Gates = %+v", merged.Gates)
	}
	if !slices.Equal(merged.Mappings["g1"], []string{"t1", "t2"}) {
		t.Errorf("Mappings = %v", merged.Mappings)
	}

	_, err = Merge(one, mustParse(t, "gates:\n  - id: g1\n    module: m\n    severity: low\n"))
	if !errors.Is(err, ErrInvalidBundle) || !strings.Contains(err.Error(), "gate g1") {
		t.Errorf("duplicate gate error = %v", err)
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "20-remediations.yaml"), "version: two\nremediations:\n  - id: t1\n    gate: g1\n    severity: low\n    strategy: template_insertion\n    insertion: end\n    body: x\n")
	writeFile(t, filepath.Join(dir, "10-gates.yml"), "version: one\ngates:\n  - id: g1\n    module: m\n    severity: low\n    kind: max_length\n    limit: 5\n")
	writeFile(t, filepath.Join(dir, "nested", "30-more.yaml"), "fields:\n  - name: desk\n    default: the desk\n")
	writeFile(t, filepath.Join(dir, ".hidden.yaml"), "not: [valid\n")
	writeFile(t, filepath.Join(dir, ".git", "config.yaml"), "not: [valid\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# docs\n")

	b, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	wantSources := []string{
		filepath.Join(dir, "10-gates.yml"),
		filepath.Join(dir, "20-remediations.yaml"),
		filepath.Join(dir, "nested", "30-more.yaml"),
	}
	if !slices.Equal(b.Sources, wantSources) {
		t.Errorf("Sources = %v, want %v", b.Sources, wantSources)
	}
	if b.Version != "two" || len(b.Gates) != 1 || len(b.Remediations) != 1 || len(b.Fields) != 1 {
		t.Errorf("merged bundle = %+v", b)
	}

	p, err := Open(context.Background(), SourceConfig{Path: dir}, CompileOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p.Remediations.Len() != 1 {
		t.Errorf("templates = %d", p.Remediations.Len())
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, "bad.yaml"), "\xff\xfe")

	if _, err := LoadDir(dir); err == nil {
		t.Error("LoadDir() with an invalid file succeeded")
	}
	if _, err := LoadFile(filepath.Join(dir, "bad.yaml")); !errors.Is(err, ErrInvalidBundle) {
		t.Errorf("invalid UTF-8 error = %v", err)
	}
	if _, err := LoadDir(t.TempDir()); !errors.Is(err, ErrNoBundleFiles) {
		t.Errorf("empty dir error = %v", err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := Load(context.Background(), SourceConfig{Type: "s3", Path: dir}); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("unknown source error = %v", err)
	}
}
