// Package config provides configuration management for Gatekeeper.
//
// This package handles loading and validating configuration from YAML files
// with environment variable overrides. Sections cover the synthesis engine,
// the policy bundle source, the semantic analysis client, the audit store
// and telemetry.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("gatekeeper.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("gatekeeper.yaml")
//
// Unknown keys are rejected so that a misspelled option fails loudly.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GATEKEEPER_SECTION_FIELD.
// For example:
//
//   - GATEKEEPER_ENGINE_MAX_ITERATIONS overrides engine.max_iterations
//   - GATEKEEPER_POLICY_GIT_REF overrides policy.git.ref
//   - GATEKEEPER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example
//
//	engine:
//	  max_iterations: 5
//	  batch_workers: 8
//	  confidence:
//	    match_strength: 0.4
//	    success_rate: 0.3
//	    context_completeness: 0.3
//	policy:
//	  source: dir
//	  path: ./policies
//	  watch: true
//	audit:
//	  backend: sqlite
//	  sqlite:
//	    path: data/audit.db
//	  retention:
//	    days: 90
//	    schedule: "0 3 * * *"
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
