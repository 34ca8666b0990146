// Package guard keeps synthesis runs reproducible.
//
// A Guard is created per run. It remembers every (content hash, remediation
// signature) pair applied in the run so that a remediation is never applied
// twice to the same document state, which stops two remediations from
// flipping a document back and forth. VerifyChain re-checks the hash chain
// of a finished run and is what audit consumers use to detect tampering.
package guard
