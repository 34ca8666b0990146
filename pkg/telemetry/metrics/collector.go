package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/synthesis"
)

// Config configures the collector and its HTTP endpoint.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`

	// Addr is the listen address for the metrics endpoint, used by
	// long-running commands.
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   false,
		Namespace: "gatekeeper",
		Addr:      ":9090",
		Path:      "/metrics",
	}
}

// Collector records gatekeeper metrics into its own Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	gateEvaluations *prometheus.CounterVec
	gateDuration    *prometheus.HistogramVec

	runs        *prometheus.CounterVec
	iterations  prometheus.Histogram
	runDuration prometheus.Histogram
	corrections *prometheus.CounterVec
	residual    *prometheus.CounterVec

	policyReloads *prometheus.CounterVec
	policyInfo    *prometheus.GaugeVec

	auditPruned prometheus.Counter
}

var (
	_ gates.Observer     = (*Collector)(nil)
	_ synthesis.Observer = (*Collector)(nil)
)

// NewCollector creates and registers the metrics. A nil registry creates a
// fresh one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "gatekeeper"
	}

	c := &Collector{
		registry: registry,

		gateEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "gate_evaluations_total",
			Help:      "Gate evaluations by gate and status.",
		}, []string{"gate_id", "status"}),

		gateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "gate_evaluation_duration_seconds",
			Help:      "Duration of a single gate evaluation.",
			// Pattern gates take microseconds, semantic gates up to seconds.
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"gate_id"}),

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "synthesis_runs_total",
			Help:      "Finished synthesis runs by outcome.",
		}, []string{"outcome"}),

		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "synthesis_iterations",
			Help:      "Iterations used per synthesis run.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "synthesis_duration_seconds",
			Help:      "Wall time of a synthesis run.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),

		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "corrections_total",
			Help:      "Correction records by strategy and whether they changed the document.",
		}, []string{"strategy", "changed"}),

		residual: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "residual_failures_total",
			Help:      "Gates still failing when a run ended without converging.",
		}, []string{"gate_id"}),

		policyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "policy_reloads_total",
			Help:      "Policy bundle loads by result.",
		}, []string{"result"}),

		policyInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "policy_info",
			Help:      "Active policy bundle version (always 1).",
		}, []string{"version"}),

		auditPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "audit_pruned_total",
			Help:      "Audit entries removed by retention.",
		}),
	}

	registry.MustRegister(
		c.gateEvaluations,
		c.gateDuration,
		c.runs,
		c.iterations,
		c.runDuration,
		c.corrections,
		c.residual,
		c.policyReloads,
		c.policyInfo,
		c.auditPruned,
	)
	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// GateEvaluated implements gates.Observer.
func (c *Collector) GateEvaluated(result gates.Result, d time.Duration) {
	c.gateEvaluations.WithLabelValues(result.GateID, string(result.Status)).Inc()
	c.gateDuration.WithLabelValues(result.GateID).Observe(d.Seconds())
}

// SynthesisCompleted implements synthesis.Observer.
func (c *Collector) SynthesisCompleted(res *synthesis.Result) {
	c.runs.WithLabelValues(string(res.Outcome)).Inc()
	c.iterations.Observe(float64(res.IterationsUsed))
	c.runDuration.Observe(res.Duration.Seconds())
	for _, rec := range res.Corrections {
		c.corrections.WithLabelValues(string(rec.Strategy), strconv.FormatBool(rec.Changed())).Inc()
	}
	for _, r := range res.ResidualFailures {
		c.residual.WithLabelValues(r.GateID).Inc()
	}
}

// PolicyLoaded records a bundle load. A successful load replaces the
// version reported by policy_info.
func (c *Collector) PolicyLoaded(version string, err error) {
	if err != nil {
		c.policyReloads.WithLabelValues("error").Inc()
		return
	}
	c.policyReloads.WithLabelValues("success").Inc()
	c.policyInfo.Reset()
	c.policyInfo.WithLabelValues(version).Set(1)
}

// AuditPruned records entries removed by retention.
func (c *Collector) AuditPruned(n int64) {
	if n > 0 {
		c.auditPruned.Add(float64(n))
	}
}
