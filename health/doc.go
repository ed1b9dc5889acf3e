// Package health implements threshold-debounced health checking and
// readiness gating for services.
//
// Each registered check runs on its own periodic timer. An evaluation
// maps the raw status to pass/fail under the check's readiness
// threshold, then advances consecutive-success/failure counters; the
// debounced Passing verdict flips only when the configured threshold
// is crossed. This hysteresis prevents a flapping dependency from
// toggling readiness on every cycle.
//
// # Basic Usage
//
//	registry := health.NewRegistry(health.RegistryConfig{Service: "payments"})
//	registry.Register("database", dbChecker, func(o *health.CheckOptions) {
//	    o.Interval = 10 * time.Second
//	    o.FailureThreshold = 3
//	    o.SuccessThreshold = 2
//	    o.ReadinessThreshold = health.ThresholdHealthy
//	    o.BlockReadinessOnStartup = true
//	})
//	registry.Start(ctx)
//	defer registry.Stop()
//
// # Readiness
//
// Aggregate readiness is recomputed from the latest snapshots on every
// query: the service is ready iff every readiness-affecting check is
// passing and every startup-blocking check has reported at least once.
//
//	mux.HandleFunc("/readyz", health.ReadinessHandler(registry))
//
// # Gating inbound work
//
// A Gate rejects message handling while the service is not ready. The
// returned NotReadyError is recoverable; callers should requeue the
// work after RequeueDelay.
//
//	gate, _ := health.NewGate("payments", registry, meter, logger)
//	handle = gate.Wrap(handle)
package health
