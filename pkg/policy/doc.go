// Package policy loads declarative policy bundles and compiles them into the
// gate and remediation registries used by the synthesis engine.
//
// A bundle is YAML describing modules, gates, shared template fields,
// remediation templates and the explicit gate-to-template mapping table:
//
//	version: "2026.10"
//	modules:
//	  - id: cobs
//	    name: Conduct of Business
//	gates:
//	  - id: fair_clear_not_misleading
//	    module: cobs
//	    severity: critical
//	    kind: required_pattern
//	    pattern: (?i)capital at risk
//	remediations:
//	  - id: fcnm_risk_warning
//	    gate: fair_clear_not_misleading
//	    module: cobs
//	    severity: critical
//	    strategy: template_insertion
//	    insertion: start
//	    body: "Capital at risk. {{firm_name}} ..."
//	mappings:
//	  fair_clear_not_misleading: [fcnm_risk_warning]
//
// Bundles can be read from a single file, from a directory (files merged in
// lexical order), or from a git repository pinned to a ref. Every loaded
// bundle carries a fingerprint over its canonical content which is reported
// as the policy version of synthesis results and audit entries.
//
// Watcher reloads a file or directory bundle when it changes on disk.
package policy
