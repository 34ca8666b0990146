// Package resolver turns the failing results of a validation report into an
// ordered remediation plan.
//
// Candidates come from the remediation registry (explicit mapping table,
// exact gate match, then substring fallback) and are filtered by each
// template's condition. The plan is ordered by a single key:
//
//	(strategy rank asc, priority desc, severity desc, gate id asc, template id asc)
//
// so that the plan for a given document and registry is always the same.
package resolver
