// Package gates provides policy gates and the registry that evaluates them.
//
// A gate is a single named policy check: a function of a document that
// returns a Result with one of four statuses (pass, fail, warning,
// not_applicable). Gates are grouped into modules (one per regulatory
// framework) and registered once through a Builder. Build freezes the set
// into an immutable Registry that is safe to share across goroutines.
//
// # Evaluation
//
//	reg, err := gates.NewBuilder(logger).
//	    WithWorkers(8).
//	    Register(gates.Definition{ID: "risk_warning", ModuleID: "cobs", ...}).
//	    Build()
//	report := reg.Evaluate(ctx, doc, []string{"cobs"})
//
// Gates run in parallel on a bounded worker pool. The report is always sorted
// by gate id, so parallelism changes wall-clock time but never content.
//
// # Failure Semantics
//
// A gate returning an error, or panicking, is reported as a Warning carrying
// the error text; the remaining gates still run. Gates backed by the
// semantic-analysis service report Warning when the service fails or times
// out, which lets callers tell "policy violated" from "could not determine".
package gates
