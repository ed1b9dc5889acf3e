// Package observe bootstraps telemetry for a service: OpenTelemetry
// tracing and metrics with pluggable exporters, and a structured JSON
// logger.
//
// An Observer is created once at service startup and handed by
// reference to the components that need a tracer, meter, or logger:
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "payments",
//	    Version:     "1.4.0",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
// Disabled subsystems fall back to no-op implementations, so callers
// never need nil checks.
package observe
