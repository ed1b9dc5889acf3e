package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/apiaryhq/servicekit/resilience"
)

// errTransientStatus marks a response whose status is retryable. It
// never escapes the transport chain; callers see the response itself.
var errTransientStatus = errors.New("httpclient: transient status")

// isTransientStatus reports whether a status code is worth retrying.
func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// drainLimit bounds how much of a discarded response body is read
// before closing, to keep the connection reusable.
const drainLimit = 4 << 10

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

// cancelBody ties an attempt's cancel func to the response body so the
// per-attempt context stays alive until the caller finishes reading.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// retryTransport retries transient failures with a bounded attempt
// count, bounding each individual attempt with the per-attempt timeout.
type retryTransport struct {
	next       http.RoundTripper
	maxRetries int
	perAttempt time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// A body without GetBody cannot be replayed; run a single attempt.
	if req.Body != nil && req.GetBody == nil {
		return t.attempt(req.Context(), req)
	}

	var lastResp *http.Response

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: t.maxRetries + 1,
		RetryIf: func(err error) bool {
			// Never retry past a cancelled caller, and never retry a
			// misconfigured credential.
			if req.Context().Err() != nil {
				return false
			}
			return !errors.Is(err, ErrEmptyToken)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			drain(lastResp)
			lastResp = nil
		},
	})

	err := retry.Execute(req.Context(), func(ctx context.Context) error {
		resp, err := t.attempt(ctx, req)
		if err != nil {
			return err
		}
		lastResp = resp
		if isTransientStatus(resp.StatusCode) {
			return errTransientStatus
		}
		return nil
	})

	if err == nil || errors.Is(err, errTransientStatus) {
		// The final response is propagated even when its status is
		// transient; retries are exhausted at this point.
		return lastResp, nil
	}
	return nil, err
}

func (t *retryTransport) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if t.perAttempt > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.perAttempt)
	}

	attempt := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, err
		}
		attempt.Body = body
	}

	resp, err := t.next.RoundTrip(attempt)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// breakerTransport routes the whole attempt sequence through the
// circuit breaker: one observation per sequence, and a fast
// ErrCircuitOpen failure while the circuit is open.
type breakerTransport struct {
	next    http.RoundTripper
	breaker *resilience.CircuitBreaker
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	err := t.breaker.Execute(req.Context(), func(ctx context.Context) error {
		var err error
		resp, err = t.next.RoundTrip(req)
		if err != nil {
			return err
		}
		if isTransientStatus(resp.StatusCode) {
			// Counted as a breaker failure; the response still goes
			// back to the caller.
			return errTransientStatus
		}
		return nil
	})

	if err != nil && !errors.Is(err, errTransientStatus) {
		return nil, err
	}
	return resp, nil
}

// bulkheadTransport bounds in-flight requests through the client.
type bulkheadTransport struct {
	next     http.RoundTripper
	bulkhead *resilience.Bulkhead
}

func (t *bulkheadTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.bulkhead.Execute(req.Context(), func(ctx context.Context) error {
		var err error
		resp, err = t.next.RoundTrip(req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// rateTransport rate-limits requests through the client.
type rateTransport struct {
	next    http.RoundTripper
	limiter *resilience.RateLimiter
}

func (t *rateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.limiter.Execute(req.Context(), func(ctx context.Context) error {
		var err error
		resp, err = t.next.RoundTrip(req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// clientMetrics holds the instruments shared by every request through
// one client.
type clientMetrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newClientMetrics(meter metric.Meter) (*clientMetrics, error) {
	requests, err := meter.Int64Counter(
		"http.client.requests",
		metric.WithDescription("Total outbound HTTP request sequences"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errCount, err := meter.Int64Counter(
		"http.client.errors",
		metric.WithDescription("Outbound HTTP request sequences that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"http.client.duration_ms",
		metric.WithDescription("Outbound HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &clientMetrics{
		requests: requests,
		errors:   errCount,
		duration: duration,
	}, nil
}

// telemetryTransport is the outermost stage. It records exactly once
// per attempt sequence, in a deferred block so it fires even when an
// inner stage returns an error.
type telemetryTransport struct {
	next    http.RoundTripper
	service string
	client  string
	metrics *clientMetrics
}

func (t *telemetryTransport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	start := time.Now()

	defer func() {
		ctx := context.WithoutCancel(req.Context())

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		opt := metric.WithAttributes(
			attribute.String("service", t.service),
			attribute.String("client", t.client),
			attribute.String("http.method", req.Method),
			attribute.String("server.address", req.URL.Host),
			attribute.Int("http.status_code", status),
		)

		t.metrics.requests.Add(ctx, 1, opt)
		t.metrics.duration.Record(ctx, float64(time.Since(start).Milliseconds()), opt)
		if err != nil || status >= 400 {
			t.metrics.errors.Add(ctx, 1, opt)
		}
	}()

	return t.next.RoundTrip(req)
}
