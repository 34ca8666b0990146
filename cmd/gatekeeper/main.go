// Gatekeeper evaluates documents against regulatory policy gates and
// synthesizes deterministic corrections until they comply.
//
// Every run is bounded, reproducible and audited: the same document and
// policy bundle always produce the same corrected text, and each applied
// correction is recorded with content hashes that chain the input to the
// output.
//
// Usage:
//
//	# Correct a document and print the result
//	gatekeeper synthesize promotion.md --type financial_promotion
//
//	# Evaluate gates without correcting
//	gatekeeper validate promotion.md
//
//	# Correct a directory of documents in parallel
//	gatekeeper batch drafts/ --out-dir corrected/
//
//	# Check a policy bundle, re-checking on every change
//	gatekeeper lint --policy policies/ --watch
//
//	# Inspect and verify audit records
//	gatekeeper audit list --outcome needs_review
//	gatekeeper audit verify <run-id>
//
// Exit status is 0 when every document converged, 2 when failures remain
// for review, 3 when a run stalled and 1 on errors.
package main

func main() {
	Execute()
}
