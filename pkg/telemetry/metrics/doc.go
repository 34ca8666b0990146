// Package metrics exposes Prometheus metrics for gate evaluation, synthesis
// runs, policy reloads and audit retention.
//
// A Collector implements both gates.Observer and synthesis.Observer, so it is
// wired in by passing it to the gate registry builder and the engine:
//
//	c := metrics.NewCollector(metrics.DefaultConfig(), nil)
//	policy.Compile(bundle, policy.CompileOptions{GateObserver: c})
//	synthesis.New(gates, templates, cfg, logger, synthesis.WithObserver(c))
//	http.Handle("/metrics", c.Handler())
//
// Metrics (namespace "gatekeeper" by default):
//
//	gatekeeper_gate_evaluations_total{gate_id,status}
//	gatekeeper_gate_evaluation_duration_seconds{gate_id}
//	gatekeeper_synthesis_runs_total{outcome}
//	gatekeeper_synthesis_iterations
//	gatekeeper_synthesis_duration_seconds
//	gatekeeper_corrections_total{strategy,changed}
//	gatekeeper_residual_failures_total{gate_id}
//	gatekeeper_policy_reloads_total{result}
//	gatekeeper_policy_info{version}
//	gatekeeper_audit_pruned_total
package metrics
