// Package httpclient builds named outbound HTTP clients from
// configuration, composing authentication, resilience, and telemetry
// around every request.
//
// The transport chain wraps the sockets transport inside out:
// authentication (innermost, so a bad credential fails before any
// network I/O and each retry carries a fresh token), retry with a
// per-attempt timeout, a failure-ratio circuit breaker, bulkhead and
// rate-limit stages, and finally telemetry, which records exactly once
// per attempt sequence.
//
// Construction fails fast: a missing or relative base address, or an
// auth type whose factory was never supplied, is rejected before the
// first request.
//
//	client, err := httpclient.New(httpclient.Options{
//	    Name:        "billing-api",
//	    BaseAddress: "https://billing.internal",
//	    Resilience: httpclient.ResilienceOptions{
//	        MaxRetries:        3,
//	        PerAttemptTimeout: 2 * time.Second,
//	        CircuitBreaker:    httpclient.CircuitBreakerOptions{Enabled: true},
//	    },
//	    Authentication: httpclient.AuthOptions{
//	        Type:  httpclient.AuthAPIKey,
//	        Value: os.Getenv("BILLING_KEY"),
//	    },
//	}, httpclient.Deps{Service: "payments", Meter: meter, Logger: logger})
//
// A Registry builds every client from a configuration map at startup,
// failing on the first invalid entry.
package httpclient
