// Package tracing configures OpenTelemetry tracing.
//
// When enabled, spans are exported over OTLP/gRPC. When disabled, New
// returns a no-op provider so callers can always ask for a tracer:
//
//	tp, err := tracing.New(ctx, cfg)
//	defer tp.Shutdown(ctx)
//	engine, _ := synthesis.New(..., synthesis.WithTracer(tp.Tracer("gatekeeper/synthesis")))
//
// The synthesis engine emits one "synthesis.Synthesize" span per run and a
// child "synthesis.iteration" span per loop iteration.
package tracing
