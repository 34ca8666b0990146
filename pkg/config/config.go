package config

import (
	"time"

	"mercator-hq/gatekeeper/pkg/policy"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
	"mercator-hq/gatekeeper/pkg/telemetry/metrics"
	"mercator-hq/gatekeeper/pkg/telemetry/tracing"
	"mercator-hq/gatekeeper/pkg/transform"
)

// Config is the root configuration structure for Gatekeeper.
type Config struct {
	// Engine configures the synthesis loop and its worker pools.
	Engine EngineConfig `yaml:"engine"`

	// Policy locates the policy bundle and controls reloading.
	Policy PolicyConfig `yaml:"policy"`

	// Semantic configures the external semantic analysis service used by
	// semantic gates.
	Semantic SemanticConfig `yaml:"semantic"`

	// Audit configures the audit store and its retention.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig configures the synthesis engine.
type EngineConfig struct {
	// MaxIterations is the default iteration bound of a run. Zero is valid
	// and reports failures without remediation.
	// Default: 5
	MaxIterations *int `yaml:"max_iterations"`

	// GateWorkers bounds concurrent gate evaluations within one document.
	// Default: number of CPUs
	GateWorkers int `yaml:"gate_workers"`

	// BatchWorkers bounds concurrent documents in batch mode.
	// Default: 4
	BatchWorkers int `yaml:"batch_workers"`

	// SubstringFallback enables case-insensitive substring matching of
	// remediations when neither the mapping table nor an exact gate match
	// yields a candidate.
	// Default: false
	SubstringFallback bool `yaml:"substring_fallback"`

	// Confidence holds the correction confidence weights.
	// Default: 0.4 / 0.3 / 0.3
	Confidence transform.Weights `yaml:"confidence"`

	// SignaturePattern locates the signature block for before_signature
	// insertions.
	SignaturePattern string `yaml:"signature_pattern"`
}

// PolicyConfig configures where the policy bundle comes from.
type PolicyConfig struct {
	policy.SourceConfig `yaml:",inline"`

	// Watch reloads the bundle when files under Path change. Only file
	// and dir sources can be watched.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period before a change triggers a reload.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}

// Source returns the bundle source. File and dir sources without a path
// read DefaultPolicyPath.
func (c PolicyConfig) Source() policy.SourceConfig {
	src := c.SourceConfig
	if src.Type != policy.SourceGit && src.Path == "" {
		src.Path = DefaultPolicyPath
	}
	return src
}

// SemanticConfig configures the semantic analysis client.
type SemanticConfig struct {
	// Enabled turns on the HTTP client. When disabled, semantic gates
	// report a Warning instead of calling out.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the URL that receives analysis requests.
	Endpoint string `yaml:"endpoint"`

	// APIKey is sent as a bearer token.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single HTTP attempt.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries for transient failures.
	// Default: 1
	MaxRetries *int `yaml:"max_retries"`

	// RetryBackoff is the base delay between retries.
	// Default: 100ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// CacheSize is the number of findings kept in the LRU cache.
	// Zero disables the cache.
	// Default: 1024
	CacheSize *int `yaml:"cache_size"`
}

// AuditConfig configures the audit store.
type AuditConfig struct {
	// Enabled records every finished run.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// RetainText stores input and final text so the hash chain can be
	// replayed by "audit verify".
	// Default: false
	RetainText bool `yaml:"retain_text"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention configures pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig configures the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig configures audit pruning.
type RetentionConfig struct {
	// Days is how long entries are kept. Zero keeps them forever.
	// Default: 365
	Days *int `yaml:"days"`

	// MaxEntries caps the store size. Zero means unlimited.
	MaxEntries int64 `yaml:"max_entries"`

	// Schedule is a standard cron expression. Empty disables scheduled
	// pruning.
	// Default: "0 3 * * *"
	Schedule *string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging logging.Config `yaml:"logging"`
	Metrics metrics.Config `yaml:"metrics"`
	Tracing tracing.Config `yaml:"tracing"`
}
