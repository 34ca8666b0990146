package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/policy"
	"mercator-hq/gatekeeper/pkg/transform"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_iterations: 0
  batch_workers: 8
  substring_fallback: true
policy:
  source: dir
  path: ./bundles
  watch: true
  debounce: 250ms
semantic:
  enabled: true
  endpoint: "http://localhost:8081/analyze"
  cache_size: 0
audit:
  backend: memory
  retention:
    days: 30
    max_entries: 1000
    schedule: ""
telemetry:
  logging:
    level: debug
    format: text
  metrics:
    enabled: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if *cfg.Engine.MaxIterations != 0 {
		t.Errorf("max_iterations = %d, want 0", *cfg.Engine.MaxIterations)
	}
	if cfg.Engine.BatchWorkers != 8 {
		t.Errorf("batch_workers = %d, want 8", cfg.Engine.BatchWorkers)
	}
	if !cfg.Engine.SubstringFallback {
		t.Error("substring_fallback should be true")
	}
	if cfg.Policy.Type != policy.SourceDir || cfg.Policy.Path != "./bundles" {
		t.Errorf("policy source = %q %q", cfg.Policy.Type, cfg.Policy.Path)
	}
	if !cfg.Policy.Watch || cfg.Policy.Debounce != 250*time.Millisecond {
		t.Errorf("policy watch = %v debounce = %v", cfg.Policy.Watch, cfg.Policy.Debounce)
	}
	if *cfg.Semantic.CacheSize != 0 {
		t.Errorf("cache_size = %d, want 0", *cfg.Semantic.CacheSize)
	}
	if cfg.Audit.Backend != "memory" {
		t.Errorf("audit backend = %q, want memory", cfg.Audit.Backend)
	}
	if *cfg.Audit.Retention.Days != 30 || cfg.Audit.Retention.MaxEntries != 1000 {
		t.Errorf("retention = %d days / %d entries", *cfg.Audit.Retention.Days, cfg.Audit.Retention.MaxEntries)
	}
	if *cfg.Audit.Retention.Schedule != "" {
		t.Errorf("schedule = %q, want empty", *cfg.Audit.Retention.Schedule)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
	// Defaults still fill what the file leaves out.
	if cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
		t.Errorf("metrics path = %q, want %q", cfg.Telemetry.Metrics.Path, DefaultMetricsPath)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown key",
			content: "engine:\n  max_iteration: 3\n",
			wantErr: "max_iteration",
		},
		{
			name:    "malformed yaml",
			content: "engine: [",
			wantErr: "failed to parse",
		},
		{
			name:    "invalid value",
			content: "engine:\n  batch_workers: -1\n",
			wantErr: "engine.batch_workers",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if *cfg.Engine.MaxIterations != DefaultMaxIterations {
		t.Errorf("max_iterations = %d, want %d", *cfg.Engine.MaxIterations, DefaultMaxIterations)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Engine.GateWorkers != runtime.NumCPU() {
		t.Errorf("gate_workers = %d, want %d", cfg.Engine.GateWorkers, runtime.NumCPU())
	}
	if cfg.Engine.Confidence != transform.DefaultWeights() {
		t.Errorf("confidence = %+v", cfg.Engine.Confidence)
	}
	if !*cfg.Audit.Enabled || cfg.Audit.Backend != DefaultAuditBackend {
		t.Errorf("audit = %v %q", *cfg.Audit.Enabled, cfg.Audit.Backend)
	}
	if *cfg.Audit.Retention.Schedule != DefaultAuditRetentionSchedule {
		t.Errorf("schedule = %q", *cfg.Audit.Retention.Schedule)
	}
	if src := cfg.Policy.Source(); src.Path != DefaultPolicyPath {
		t.Errorf("policy path = %q, want %q", src.Path, DefaultPolicyPath)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Default()
	*cfg.Engine.MaxIterations = 2
	ApplyDefaults(cfg)
	if *cfg.Engine.MaxIterations != 2 {
		t.Errorf("max_iterations = %d, want 2", *cfg.Engine.MaxIterations)
	}
}

func TestPolicyConfig_Source(t *testing.T) {
	tests := []struct {
		name     string
		cfg      PolicyConfig
		wantPath string
	}{
		{name: "default path", cfg: PolicyConfig{}, wantPath: DefaultPolicyPath},
		{name: "explicit path", cfg: PolicyConfig{SourceConfig: policy.SourceConfig{Path: "p.yaml"}}, wantPath: "p.yaml"},
		{name: "git keeps empty prefix", cfg: PolicyConfig{SourceConfig: policy.SourceConfig{Type: policy.SourceGit}}, wantPath: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Source().Path; got != tt.wantPath {
				t.Errorf("Source().Path = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "negative max iterations", mutate: func(c *Config) { *c.Engine.MaxIterations = -1 }, wantField: "engine.max_iterations"},
		{name: "zero gate workers", mutate: func(c *Config) { c.Engine.GateWorkers = 0 }, wantField: "engine.gate_workers"},
		{name: "zero weights", mutate: func(c *Config) { c.Engine.Confidence = transform.Weights{} }, wantField: "engine.confidence"},
		{name: "bad signature pattern", mutate: func(c *Config) { c.Engine.SignaturePattern = "(" }, wantField: "engine.signature_pattern"},
		{name: "unknown source", mutate: func(c *Config) { c.Policy.Type = "s3" }, wantField: "policy.source"},
		{name: "git without url", mutate: func(c *Config) { c.Policy.Type = policy.SourceGit }, wantField: "policy.git.url"},
		{
			name: "watched git source",
			mutate: func(c *Config) {
				c.Policy.Type = policy.SourceGit
				c.Policy.Git.URL = "https://example.com/policies.git"
				c.Policy.Watch = true
			},
			wantField: "policy.watch",
		},
		{
			name: "token auth without token",
			mutate: func(c *Config) {
				c.Policy.Type = policy.SourceGit
				c.Policy.Git.URL = "https://example.com/policies.git"
				c.Policy.Git.Auth.Type = policy.AuthToken
			},
			wantField: "policy.git.auth.token",
		},
		{name: "semantic without endpoint", mutate: func(c *Config) { c.Semantic.Enabled = true }, wantField: "semantic.endpoint"},
		{
			name: "semantic relative endpoint",
			mutate: func(c *Config) {
				c.Semantic.Enabled = true
				c.Semantic.Endpoint = "/analyze"
			},
			wantField: "semantic.endpoint",
		},
		{name: "unknown audit backend", mutate: func(c *Config) { c.Audit.Backend = "postgres" }, wantField: "audit.backend"},
		{name: "unknown sqlite driver", mutate: func(c *Config) { c.Audit.SQLite.Driver = "pgx" }, wantField: "audit.sqlite.driver"},
		{name: "bad cron", mutate: func(c *Config) { *c.Audit.Retention.Schedule = "every day" }, wantField: "audit.retention.schedule"},
		{name: "bad log level", mutate: func(c *Config) { c.Telemetry.Logging.Level = "loud" }, wantField: "telemetry.logging.level"},
		{
			name: "bad metrics path",
			mutate: func(c *Config) {
				c.Telemetry.Metrics.Enabled = true
				c.Telemetry.Metrics.Path = "metrics"
			},
			wantField: "telemetry.metrics.path",
		},
		{
			name: "bad sample ratio",
			mutate: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "ratio"
				c.Telemetry.Tracing.SampleRatio = 2
			},
			wantField: "telemetry.tracing.sample_ratio",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v should include field %q", verr.Errors, tt.wantField)
			}
		})
	}
}

func TestValidate_DisabledAuditSkipsBackend(t *testing.T) {
	cfg := Default()
	*cfg.Audit.Enabled = false
	cfg.Audit.Backend = "postgres"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := one.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("Error() = %q", got)
	}

	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	got := two.Error()
	if !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("Error() = %q", got)
	}
}
