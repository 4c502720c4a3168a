// Package observability wires OpenTelemetry metrics and tracing.
//
// When enabled, Init installs OTLP/HTTP exporters as the global providers.
// When disabled the global no-op providers stay in place, so instruments
// created with NewMetrics and spans from StartSpan are always safe to use.
//
//	prov, err := observability.Init(ctx, cfg.Observability, "medscribe", version.Get().Short())
//	defer prov.Shutdown(ctx)
//	metrics, err := observability.NewMetrics(observability.Meter("medscribe"))
package observability
