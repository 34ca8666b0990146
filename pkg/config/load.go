package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/gatekeeper/pkg/policy"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GATEKEEPER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Unknown keys are rejected. The configuration is not modified by environment
// variables; use LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention GATEKEEPER_SECTION_FIELD (e.g., GATEKEEPER_ENGINE_MAX_ITERATIONS).
// Environment variables always take precedence over file-based configuration.
// An empty path starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// envOverrides collects environment values and conversion errors.
type envOverrides struct {
	lookup lookupFunc
	errs   []FieldError
}

func (o *envOverrides) get(name string) (string, bool) {
	val, ok := o.lookup(EnvPrefix + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (o *envOverrides) fail(name, val string, err error) {
	o.errs = append(o.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("invalid value %q: %v", val, err),
	})
}

func (o *envOverrides) string(name string, dst *string) {
	if val, ok := o.get(name); ok {
		*dst = val
	}
}

func (o *envOverrides) bool(name string, dst *bool) {
	if val, ok := o.get(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			o.fail(name, val, err)
			return
		}
		*dst = b
	}
}

func (o *envOverrides) int(name string, dst *int) {
	if val, ok := o.get(name); ok {
		i, err := strconv.Atoi(val)
		if err != nil {
			o.fail(name, val, err)
			return
		}
		*dst = i
	}
}

func (o *envOverrides) int64(name string, dst *int64) {
	if val, ok := o.get(name); ok {
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			o.fail(name, val, err)
			return
		}
		*dst = i
	}
}

func (o *envOverrides) float(name string, dst *float64) {
	if val, ok := o.get(name); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			o.fail(name, val, err)
			return
		}
		*dst = f
	}
}

func (o *envOverrides) duration(name string, dst *time.Duration) {
	if val, ok := o.get(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			o.fail(name, val, err)
			return
		}
		*dst = d
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format GATEKEEPER_SECTION_FIELD. Values that do
// not parse are reported rather than ignored.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	o := &envOverrides{lookup: lookup}

	// Engine overrides
	o.int("ENGINE_MAX_ITERATIONS", cfg.Engine.MaxIterations)
	o.int("ENGINE_GATE_WORKERS", &cfg.Engine.GateWorkers)
	o.int("ENGINE_BATCH_WORKERS", &cfg.Engine.BatchWorkers)
	o.bool("ENGINE_SUBSTRING_FALLBACK", &cfg.Engine.SubstringFallback)
	o.float("ENGINE_CONFIDENCE_MATCH_STRENGTH", &cfg.Engine.Confidence.MatchStrength)
	o.float("ENGINE_CONFIDENCE_SUCCESS_RATE", &cfg.Engine.Confidence.SuccessRate)
	o.float("ENGINE_CONFIDENCE_CONTEXT_COMPLETENESS", &cfg.Engine.Confidence.Completeness)
	o.string("ENGINE_SIGNATURE_PATTERN", &cfg.Engine.SignaturePattern)

	// Policy overrides
	o.string("POLICY_SOURCE", &cfg.Policy.Type)
	o.string("POLICY_PATH", &cfg.Policy.Path)
	o.bool("POLICY_WATCH", &cfg.Policy.Watch)
	o.duration("POLICY_DEBOUNCE", &cfg.Policy.Debounce)
	o.string("POLICY_GIT_URL", &cfg.Policy.Git.URL)
	o.string("POLICY_GIT_REF", &cfg.Policy.Git.Ref)
	o.duration("POLICY_GIT_TIMEOUT", &cfg.Policy.Git.Timeout)
	o.string("POLICY_GIT_AUTH_TYPE", &cfg.Policy.Git.Auth.Type)
	o.string("POLICY_GIT_AUTH_TOKEN", &cfg.Policy.Git.Auth.Token)
	o.string("POLICY_GIT_AUTH_SSH_KEY_PATH", &cfg.Policy.Git.Auth.SSHKeyPath)
	o.string("POLICY_GIT_AUTH_SSH_KEY_PASSPHRASE", &cfg.Policy.Git.Auth.SSHKeyPassphrase)
	if cfg.Policy.Type == "" && cfg.Policy.Git.URL != "" {
		cfg.Policy.Type = policy.SourceGit
	}

	// Semantic overrides
	o.bool("SEMANTIC_ENABLED", &cfg.Semantic.Enabled)
	o.string("SEMANTIC_ENDPOINT", &cfg.Semantic.Endpoint)
	o.string("SEMANTIC_API_KEY", &cfg.Semantic.APIKey)
	o.duration("SEMANTIC_TIMEOUT", &cfg.Semantic.Timeout)
	o.int("SEMANTIC_MAX_RETRIES", cfg.Semantic.MaxRetries)
	o.duration("SEMANTIC_RETRY_BACKOFF", &cfg.Semantic.RetryBackoff)
	o.int("SEMANTIC_CACHE_SIZE", cfg.Semantic.CacheSize)

	// Audit overrides
	o.bool("AUDIT_ENABLED", cfg.Audit.Enabled)
	o.string("AUDIT_BACKEND", &cfg.Audit.Backend)
	o.bool("AUDIT_RETAIN_TEXT", &cfg.Audit.RetainText)
	o.string("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	o.string("AUDIT_SQLITE_DRIVER", &cfg.Audit.SQLite.Driver)
	o.bool("AUDIT_SQLITE_WAL_MODE", cfg.Audit.SQLite.WALMode)
	o.duration("AUDIT_SQLITE_BUSY_TIMEOUT", &cfg.Audit.SQLite.BusyTimeout)
	o.int("AUDIT_RETENTION_DAYS", cfg.Audit.Retention.Days)
	o.int64("AUDIT_RETENTION_MAX_ENTRIES", &cfg.Audit.Retention.MaxEntries)
	o.string("AUDIT_RETENTION_SCHEDULE", cfg.Audit.Retention.Schedule)

	// Telemetry overrides
	o.string("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	o.string("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	o.bool("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	o.bool("TELEMETRY_LOGGING_REDACT", &cfg.Telemetry.Logging.Redact)
	o.bool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	o.string("TELEMETRY_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)
	o.string("TELEMETRY_METRICS_ADDR", &cfg.Telemetry.Metrics.Addr)
	o.string("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	o.bool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	o.string("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	o.bool("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	o.duration("TELEMETRY_TRACING_TIMEOUT", &cfg.Telemetry.Tracing.Timeout)
	o.string("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	o.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	o.string("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)

	if len(o.errs) > 0 {
		return fmt.Errorf("invalid environment overrides: %w", ValidationError{Errors: o.errs})
	}
	return nil
}

// EnvName returns the environment variable for a dotted configuration field,
// e.g. "engine.max_iterations" becomes "GATEKEEPER_ENGINE_MAX_ITERATIONS".
func EnvName(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
