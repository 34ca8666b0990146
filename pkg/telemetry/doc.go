// Package telemetry groups the observability packages used by gatekeeper:
//
//   - logging: slog logger construction, run-scoped context attributes and
//     secret redaction
//   - metrics: Prometheus collector implementing the gate and synthesis
//     observers
//   - tracing: OpenTelemetry provider with OTLP/gRPC export
package telemetry
