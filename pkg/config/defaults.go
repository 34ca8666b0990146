package config

import (
	"runtime"
	"time"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/policy"
	"mercator-hq/gatekeeper/pkg/synthesis"
	"mercator-hq/gatekeeper/pkg/transform"
)

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultMaxIterations = synthesis.DefaultMaxIterations
	DefaultBatchWorkers  = 4

	// Policy defaults
	DefaultPolicyPath     = "./policies"
	DefaultPolicyDebounce = policy.DefaultDebounce
	DefaultGitTimeout     = policy.DefaultGitTimeout

	// Semantic defaults
	DefaultSemanticTimeout      = 5 * time.Second
	DefaultSemanticMaxRetries   = 1
	DefaultSemanticRetryBackoff = 100 * time.Millisecond
	DefaultSemanticCacheSize    = 1024

	// Audit defaults
	DefaultAuditEnabled           = true
	DefaultAuditBackend           = "sqlite"
	DefaultAuditSQLitePath        = "data/audit.db"
	DefaultAuditSQLiteDriver      = "sqlite"
	DefaultAuditSQLiteWALMode     = true
	DefaultAuditSQLiteBusyTimeout = 5 * time.Second
	DefaultAuditRetentionDays     = 365
	DefaultAuditRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsNamespace = "gatekeeper"
	DefaultMetricsAddr      = ":9090"
	DefaultMetricsPath      = "/metrics"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "always"
	DefaultTracingService   = "gatekeeper"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.MaxIterations == nil {
		cfg.Engine.MaxIterations = intPtr(DefaultMaxIterations)
	}
	if cfg.Engine.GateWorkers == 0 {
		cfg.Engine.GateWorkers = runtime.NumCPU()
	}
	if cfg.Engine.BatchWorkers == 0 {
		cfg.Engine.BatchWorkers = DefaultBatchWorkers
	}
	if cfg.Engine.Confidence == (transform.Weights{}) {
		cfg.Engine.Confidence = transform.DefaultWeights()
	}
	if cfg.Engine.SignaturePattern == "" {
		cfg.Engine.SignaturePattern = document.DefaultSignaturePattern
	}

	// Policy defaults
	if cfg.Policy.Type == "" && cfg.Policy.Git.URL != "" {
		cfg.Policy.Type = policy.SourceGit
	}
	if cfg.Policy.Debounce == 0 {
		cfg.Policy.Debounce = DefaultPolicyDebounce
	}
	if cfg.Policy.Git.Timeout == 0 {
		cfg.Policy.Git.Timeout = DefaultGitTimeout
	}
	if cfg.Policy.Git.Auth.Type == "" {
		cfg.Policy.Git.Auth.Type = policy.AuthNone
	}

	// Semantic defaults
	if cfg.Semantic.Timeout == 0 {
		cfg.Semantic.Timeout = DefaultSemanticTimeout
	}
	if cfg.Semantic.MaxRetries == nil {
		cfg.Semantic.MaxRetries = intPtr(DefaultSemanticMaxRetries)
	}
	if cfg.Semantic.RetryBackoff == 0 {
		cfg.Semantic.RetryBackoff = DefaultSemanticRetryBackoff
	}
	if cfg.Semantic.CacheSize == nil {
		cfg.Semantic.CacheSize = intPtr(DefaultSemanticCacheSize)
	}

	// Audit defaults
	if cfg.Audit.Enabled == nil {
		cfg.Audit.Enabled = boolPtr(DefaultAuditEnabled)
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.Driver == "" {
		cfg.Audit.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if cfg.Audit.SQLite.WALMode == nil {
		cfg.Audit.SQLite.WALMode = boolPtr(DefaultAuditSQLiteWALMode)
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Audit.Retention.Days == nil {
		cfg.Audit.Retention.Days = intPtr(DefaultAuditRetentionDays)
	}
	if cfg.Audit.Retention.Schedule == nil {
		cfg.Audit.Retention.Schedule = stringPtr(DefaultAuditRetentionSchedule)
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Addr == "" {
		cfg.Telemetry.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
}

func intPtr(v int) *int          { return &v }
func boolPtr(v bool) *bool       { return &v }
func stringPtr(v string) *string { return &v }
