// Package synthesis runs the evaluate-remediate loop.
//
// An Engine owns immutable gate and remediation registries and, per call,
// drives a document through:
//
//	Evaluating -> {Resolving -> Applying -> Evaluating}* -> Converged | NeedsReview | Stalled
//
// The loop stops when no gate fails (Converged), when no failing gate has
// a usable remediation or the iteration bound is reached (NeedsReview), or
// when an iteration changed nothing and the failing gate set is unchanged
// (Stalled). The stall check runs before the bound check. All three are
// returned as values; only cancellation and invalid requests are errors.
//
// For a fixed document, registry pair and iteration bound the final text
// and the sequence of correction hashes are identical across runs. The run
// id and timings are not part of that contract.
//
// Batch runs many documents concurrently on a bounded worker pool and can
// cancel a single document between iterations.
package synthesis
