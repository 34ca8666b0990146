package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/policy"
	"mercator-hq/gatekeeper/pkg/semantic"
	"mercator-hq/gatekeeper/pkg/synthesis"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
	"mercator-hq/gatekeeper/pkg/telemetry/metrics"
	"mercator-hq/gatekeeper/pkg/telemetry/tracing"
	"mercator-hq/gatekeeper/pkg/transform"
)

// app holds the process-wide components built from configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Collector
	tracing  *tracing.Provider
	analyzer semantic.Analyzer
	store    audit.Store
}

// loadConfig loads the configuration file and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if policyPath != "" {
		cfg.Policy.Type = ""
		cfg.Policy.Path = policyPath
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if logFormat != "" {
		cfg.Telemetry.Logging.Format = logFormat
	}

	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// newApp builds logging, metrics, tracing and the semantic analyzer. The
// audit store is opened separately by commands that need it.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Telemetry.Logging)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	tracingCfg := cfg.Telemetry.Tracing
	tracingCfg.ServiceVersion = Version
	tp, err := tracing.New(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(cfg.Telemetry.Metrics, nil),
		tracing: tp,
	}
	if a.analyzer, err = newAnalyzer(cfg.Semantic, logger); err != nil {
		return nil, err
	}
	return a, nil
}

// newAnalyzer returns the semantic analyzer, or nil when the service is not
// configured.
func newAnalyzer(cfg config.SemanticConfig, logger *slog.Logger) (semantic.Analyzer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := semantic.NewClient(semantic.ClientConfig{
		Endpoint:     cfg.Endpoint,
		APIKey:       cfg.APIKey,
		Timeout:      cfg.Timeout,
		MaxRetries:   *cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return nil, cli.NewConfigError("semantic", err.Error())
	}
	if *cfg.CacheSize == 0 {
		return client, nil
	}
	cached, err := semantic.NewCachedAnalyzer(client, *cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// openStore opens the configured audit store. It returns nil when auditing
// is disabled.
func (a *app) openStore() (audit.Store, error) {
	if a.store != nil || !*a.cfg.Audit.Enabled {
		return a.store, nil
	}
	switch a.cfg.Audit.Backend {
	case "memory":
		a.store = audit.NewMemoryStore()
	case "sqlite":
		store, err := audit.NewSQLiteStore(&audit.SQLiteConfig{
			Path:        a.cfg.Audit.SQLite.Path,
			Driver:      a.cfg.Audit.SQLite.Driver,
			WALMode:     *a.cfg.Audit.SQLite.WALMode,
			BusyTimeout: a.cfg.Audit.SQLite.BusyTimeout,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		a.store = store
	default:
		return nil, cli.NewConfigError("audit.backend", fmt.Sprintf("unsupported backend %q", a.cfg.Audit.Backend))
	}
	return a.store, nil
}

// requireStore opens the audit store and fails when auditing is disabled.
func (a *app) requireStore() (audit.Store, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, cli.NewConfigError("audit.enabled", "auditing is disabled")
	}
	return store, nil
}

// pruner returns a retention pruner for store that reports to metrics.
func (a *app) pruner(store audit.Store) *audit.Pruner {
	p := audit.NewPruner(store, &audit.RetentionConfig{
		RetentionDays: *a.cfg.Audit.Retention.Days,
		MaxEntries:    a.cfg.Audit.Retention.MaxEntries,
		Schedule:      *a.cfg.Audit.Retention.Schedule,
	}, a.logger)
	p.OnPrune(a.metrics.AuditPruned)
	return p
}

// compile loads and compiles the configured policy bundle.
func (a *app) compile(ctx context.Context) (*policy.Policy, error) {
	pol, err := policy.Open(ctx, a.cfg.Policy.Source(), policy.CompileOptions{
		Analyzer:          a.analyzer,
		GateWorkers:       a.cfg.Engine.GateWorkers,
		GateObserver:      a.metrics,
		SubstringFallback: a.cfg.Engine.SubstringFallback,
		Logger:            a.logger,
	})
	if err != nil {
		a.metrics.PolicyLoaded("", err)
		return nil, err
	}
	a.metrics.PolicyLoaded(pol.Version, nil)
	a.logger.InfoContext(ctx, "policy loaded",
		"policy_version", pol.Version,
		"revision", pol.Bundle.Revision,
		"gates", pol.Gates.Len(),
		"sources", len(pol.Bundle.Sources),
	)
	return pol, nil
}

// engine builds a synthesis engine for pol. Runs are audited when a store is
// configured.
func (a *app) engine(pol *policy.Policy) (*synthesis.Engine, error) {
	cfg := synthesis.Config{
		MaxIterations: *a.cfg.Engine.MaxIterations,
		PolicyVersion: pol.Version,
		RetainText:    a.cfg.Audit.RetainText,
		Transform: transform.Config{
			Weights:          a.cfg.Engine.Confidence,
			SignaturePattern: a.cfg.Engine.SignaturePattern,
		},
	}
	opts := []synthesis.Option{
		synthesis.WithObserver(a.metrics),
		synthesis.WithTracer(a.tracing.Tracer("gatekeeper/synthesis")),
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, synthesis.WithSink(store))
	}
	return synthesis.New(pol.Gates, pol.Remediations, cfg, a.logger, opts...)
}

// serveMetrics exposes the metrics endpoint until ctx is done. It is a no-op
// when metrics are disabled.
func (a *app) serveMetrics(ctx context.Context) {
	mc := a.cfg.Telemetry.Metrics
	if !mc.Enabled {
		return
	}
	srv := &http.Server{
		Addr:              mc.Addr,
		Handler:           a.metrics.Mux(mc.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("serving metrics", "addr", mc.Addr, "path", mc.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// close releases the audit store and flushes traces.
func (a *app) close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close audit store", "error", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.tracing.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("failed to flush traces", "error", err)
	}
}

// exitFor maps a terminal outcome to its exit error. Converged runs return
// nil.
func exitFor(outcome synthesis.Outcome) error {
	switch outcome {
	case synthesis.OutcomeNeedsReview:
		return cli.NewExitError(cli.ExitNeedsReview, nil)
	case synthesis.OutcomeStalled:
		return cli.NewExitError(cli.ExitStalled, nil)
	}
	return nil
}
