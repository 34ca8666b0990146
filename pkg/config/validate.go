package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/gatekeeper/pkg/policy"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
	"mercator-hq/gatekeeper/pkg/telemetry/tracing"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engine.batch_workers").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
// Validate expects defaults to have been applied.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateSemantic(&cfg.Semantic)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// validateEngine validates engine configuration.
func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxIterations != nil && *cfg.MaxIterations < 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_iterations",
			Message: fmt.Sprintf("must be non-negative, got %d", *cfg.MaxIterations),
		})
	}
	if cfg.GateWorkers < 1 {
		errs = append(errs, FieldError{
			Field:   "engine.gate_workers",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.GateWorkers),
		})
	}
	if cfg.BatchWorkers < 1 {
		errs = append(errs, FieldError{
			Field:   "engine.batch_workers",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.BatchWorkers),
		})
	}
	if err := cfg.Confidence.Validate(); err != nil {
		errs = append(errs, FieldError{
			Field:   "engine.confidence",
			Message: err.Error(),
		})
	}
	if _, err := regexp.Compile(cfg.SignaturePattern); err != nil {
		errs = append(errs, FieldError{
			Field:   "engine.signature_pattern",
			Message: fmt.Sprintf("invalid regular expression: %v", err),
		})
	}

	return errs
}

// validatePolicy validates policy source configuration.
func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	switch cfg.Type {
	case "", policy.SourceFile, policy.SourceDir:
	case policy.SourceGit:
		if cfg.Git.URL == "" {
			errs = append(errs, FieldError{
				Field:   "policy.git.url",
				Message: "git repository URL is required when source is 'git'",
			})
		}
		if cfg.Watch {
			errs = append(errs, FieldError{
				Field:   "policy.watch",
				Message: "git sources cannot be watched",
			})
		}
		errs = append(errs, validateGitAuth(&cfg.Git.Auth)...)
	default:
		errs = append(errs, FieldError{
			Field:   "policy.source",
			Message: fmt.Sprintf("invalid source %q: must be 'file', 'dir' or 'git'", cfg.Type),
		})
	}

	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.debounce",
			Message: "must be non-negative",
		})
	}
	if cfg.Git.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.git.timeout",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateGitAuth(auth *policy.GitAuth) []FieldError {
	var errs []FieldError
	switch auth.Type {
	case "", policy.AuthNone:
	case policy.AuthToken:
		if auth.Token == "" {
			errs = append(errs, FieldError{
				Field:   "policy.git.auth.token",
				Message: "token is required when auth type is 'token'",
			})
		}
	case policy.AuthSSH:
		if auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{
				Field:   "policy.git.auth.ssh_key_path",
				Message: "ssh key path is required when auth type is 'ssh'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "policy.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'none', 'token' or 'ssh'", auth.Type),
		})
	}
	return errs
}

// validateSemantic validates semantic client configuration.
func validateSemantic(cfg *SemanticConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if cfg.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "semantic.endpoint",
				Message: "endpoint is required when semantic analysis is enabled",
			})
		} else if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "semantic.endpoint",
				Message: fmt.Sprintf("invalid URL %q", cfg.Endpoint),
			})
		}
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "semantic.timeout",
			Message: "must be positive",
		})
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "semantic.max_retries",
			Message: fmt.Sprintf("must be non-negative, got %d", *cfg.MaxRetries),
		})
	}
	if cfg.CacheSize != nil && *cfg.CacheSize < 0 {
		errs = append(errs, FieldError{
			Field:   "semantic.cache_size",
			Message: fmt.Sprintf("must be non-negative, got %d", *cfg.CacheSize),
		})
	}

	return errs
}

// validateAudit validates audit configuration.
func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled != nil && !*cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.busy_timeout",
				Message: "must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.Retention.Days != nil && *cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.days",
			Message: fmt.Sprintf("must be non-negative, got %d", *cfg.Retention.Days),
		})
	}
	if cfg.Retention.MaxEntries < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.max_entries",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Retention.MaxEntries),
		})
	}
	if cfg.Retention.Schedule != nil && *cfg.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(*cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q: must be 'debug', 'info', 'warn' or 'error'", cfg.Logging.Level),
		})
	}
	if _, err := logging.ParseFormat(cfg.Logging.Format); err != nil {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: fmt.Sprintf("must start with '/', got %q", cfg.Metrics.Path),
		})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
		switch cfg.Tracing.Sampler {
		case tracing.SamplerAlways, tracing.SamplerNever:
		case tracing.SamplerRatio:
			if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
				errs = append(errs, FieldError{
					Field:   "telemetry.tracing.sample_ratio",
					Message: fmt.Sprintf("must be between 0.0 and 1.0, got %g", cfg.Tracing.SampleRatio),
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never' or 'ratio'", cfg.Tracing.Sampler),
			})
		}
	}

	return errs
}
