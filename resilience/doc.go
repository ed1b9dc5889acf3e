// Package resilience provides composable resilience patterns for
// calls to unreliable dependencies: circuit breaking, retry with
// backoff, per-attempt timeouts, bulkhead isolation, and rate
// limiting.
//
// The circuit breaker is ratio-based: it counts outcomes in a rolling
// sampling window and trips open when the failure ratio crosses the
// configured threshold, provided a minimum number of requests has been
// observed. While open it fails fast with ErrCircuitOpen; after the
// break duration it half-opens and admits a bounded number of probes.
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureRatio:      0.5,
//	    SamplingDuration:  30 * time.Second,
//	    MinimumThroughput: 10,
//	    BreakDuration:     15 * time.Second,
//	})
//	err := cb.Execute(ctx, callDependency)
//
// Patterns compose through an Executor; each wraps the next as a
// plain function decorator:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 4})),
//	    resilience.WithTimeout(2*time.Second),
//	)
//	err := exec.Execute(ctx, callDependency)
package resilience
