// Package remediation holds the catalog of remediation templates: reusable,
// parameterized text transformations bound to the gates they fix.
//
// # Templates
//
// A Template carries a strategy (suggestion extraction, regex replacement,
// template insertion, structural reorganization), an insertion point, a
// numeric priority and a body with {{field}} placeholders. Placeholders are
// resolved against a typed field schema: every placeholder must name a
// standard field or a field declared by the bundle or the template, and every
// field has a documented default. Build fails fast on unknown placeholders,
// so rendering can never emit a literal placeholder token.
//
// # Matching
//
// Templates are found for a failing gate in three tiers:
//
//  1. the explicit gate -> template mapping table (validated at Build)
//  2. templates whose GateMatch equals the gate id
//  3. only if both are empty, and fallback is enabled: case-insensitive
//     containment in either direction between GateMatch and the gate id
//
// Ambiguous fallback matches (several distinct GateMatch values) are logged
// and flagged on the returned candidates for human review.
//
// The registry is built once and is read-only afterwards; it is safe to share
// between concurrent synthesis runs.
package remediation
