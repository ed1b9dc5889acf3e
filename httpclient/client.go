package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/apiaryhq/servicekit/observe"
	"github.com/apiaryhq/servicekit/resilience"
)

// Deps are the runtime dependencies a client cannot read from static
// configuration: telemetry handles and authentication factories.
type Deps struct {
	// Service is the owning service name attached to telemetry.
	Service string

	// Meter records client metrics. Default: no-op.
	Meter metric.Meter

	// Logger receives client lifecycle logs. Default: no-op.
	Logger observe.Logger

	// TokenSource supplies bearer tokens. Required when the client's
	// auth type is bearer.
	TokenSource TokenSource

	// HeaderProvider injects custom auth headers. Required when the
	// client's auth type is custom.
	HeaderProvider HeaderProvider

	// Base overrides the sockets transport. Intended for tests.
	Base http.RoundTripper
}

// Client is a named outbound HTTP client with authentication,
// resilience, and telemetry composed around every request.
type Client struct {
	name    string
	base    *url.URL
	flavour Flavour
	http    *http.Client
	breaker *resilience.CircuitBreaker
}

// New builds a client from options. All configuration errors surface
// here, before the first request: an invalid base address or an auth
// type whose factory was never supplied fails construction.
func New(opts Options, deps Deps) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch opts.Authentication.Type {
	case AuthBearer:
		if deps.TokenSource == nil {
			return nil, fmt.Errorf("client %q: %w", opts.Name, ErrMissingTokenSource)
		}
	case AuthCustom:
		if deps.HeaderProvider == nil {
			return nil, fmt.Errorf("client %q: %w", opts.Name, ErrMissingHeaderProvider)
		}
	}

	meter := deps.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("noop")
	}
	logger := deps.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	base, err := url.Parse(opts.BaseAddress)
	if err != nil {
		return nil, fmt.Errorf("client %q: %w: %q", opts.Name, ErrInvalidBaseAddress, opts.BaseAddress)
	}
	// A base path without a trailing slash would drop its last segment
	// during reference resolution.
	if base.Path != "" && !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	flavour := opts.Flavour
	if flavour == "" {
		flavour = FlavourInternal
	}

	transport := deps.Base
	if transport == nil {
		transport = socketsTransport(opts.Sockets)
	}

	// Compose the chain inside out: auth sits innermost so credential
	// failures surface before any network I/O and every retry carries
	// a fresh token; telemetry wraps the whole attempt sequence.
	chain := transport

	switch opts.Authentication.Type {
	case AuthAPIKey:
		header := opts.Authentication.HeaderName
		if header == "" {
			header = defaultAPIKeyHeader
		}
		chain = &apiKeyTransport{next: chain, header: header, value: opts.Authentication.Value}
	case AuthBearer:
		chain = &bearerTransport{next: chain, source: deps.TokenSource}
	case AuthCustom:
		chain = &customTransport{next: chain, provider: deps.HeaderProvider}
	}

	r := opts.Resilience
	if r.MaxRetries > 0 || r.PerAttemptTimeout > 0 {
		chain = &retryTransport{next: chain, maxRetries: r.MaxRetries, perAttempt: r.PerAttemptTimeout}
	}

	var breaker *resilience.CircuitBreaker
	if r.CircuitBreaker.Enabled {
		name := opts.Name
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureRatio:      r.CircuitBreaker.FailureRatio,
			SamplingDuration:  r.CircuitBreaker.SamplingDuration,
			MinimumThroughput: r.CircuitBreaker.MinimumThroughput,
			BreakDuration:     r.CircuitBreaker.BreakDuration,
			OnStateChange: func(from, to resilience.State) {
				logger.Warn(context.Background(), "circuit state changed",
					observe.Field{Key: "client", Value: name},
					observe.Field{Key: "from", Value: from.String()},
					observe.Field{Key: "to", Value: to.String()},
				)
			},
		})
		chain = &breakerTransport{next: chain, breaker: breaker}
	}

	if r.MaxConcurrentRequests > 0 {
		chain = &bulkheadTransport{next: chain, bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: r.MaxConcurrentRequests,
		})}
	}

	if r.RequestsPerSecond > 0 {
		chain = &rateTransport{next: chain, limiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  r.RequestsPerSecond,
			Burst: int(r.RequestsPerSecond),
		})}
	}

	metrics, err := newClientMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("client %q: %w", opts.Name, err)
	}
	chain = &telemetryTransport{
		next:    chain,
		service: deps.Service,
		client:  opts.Name,
		metrics: metrics,
	}

	return &Client{
		name:    opts.Name,
		base:    base,
		flavour: flavour,
		http:    &http.Client{Transport: chain},
		breaker: breaker,
	}, nil
}

// socketsTransport builds the pooled connection transport from the
// sockets options.
func socketsTransport(opts SocketsOptions) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.PooledConnectionIdleTimeout > 0 {
		transport.IdleConnTimeout = opts.PooledConnectionIdleTimeout
	}
	// net/http pools by idleness; a shorter lifetime tightens the idle
	// timeout so connections never outlive it.
	if opts.PooledConnectionLifetime > 0 && opts.PooledConnectionLifetime < transport.IdleConnTimeout {
		transport.IdleConnTimeout = opts.PooledConnectionLifetime
	}
	if opts.MaxConnectionsPerServer > 0 {
		transport.MaxConnsPerHost = opts.MaxConnectionsPerServer
		transport.MaxIdleConnsPerHost = opts.MaxConnectionsPerServer
	}

	return transport
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.name
}

// Flavour returns the client flavour.
func (c *Client) Flavour() Flavour {
	return c.flavour
}

// BreakerState returns the circuit state, or StateClosed when no
// breaker is configured.
func (c *Client) BreakerState() resilience.State {
	if c.breaker == nil {
		return resilience.StateClosed
	}
	return c.breaker.State()
}

// NewRequest builds a request whose URL is resolved against the
// client's base address.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpclient: invalid path %q: %w", path, err)
	}
	u := c.base.ResolveReference(ref)
	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

// Do sends the request through the composed transport chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Get issues a GET against a path relative to the base address.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// RegistryDeps carries shared and per-client runtime dependencies for
// building a set of clients from configuration.
type RegistryDeps struct {
	// Service is the owning service name.
	Service string

	// Meter records client metrics. Default: no-op.
	Meter metric.Meter

	// Logger receives client logs. Default: no-op.
	Logger observe.Logger

	// TokenSources maps client name to its bearer token source.
	TokenSources map[string]TokenSource

	// HeaderProviders maps client name to its custom header provider.
	HeaderProviders map[string]HeaderProvider

	// Base overrides the sockets transport for every client. Intended
	// for tests.
	Base http.RoundTripper
}

// Registry holds the named clients built from configuration.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry builds every configured client up front. Any invalid
// client fails the whole registry, so misconfiguration is caught at
// startup rather than on first request.
func NewRegistry(configs map[string]Options, deps RegistryDeps) (*Registry, error) {
	clients := make(map[string]*Client, len(configs))

	for name, opts := range configs {
		if opts.Name == "" {
			opts.Name = name
		}
		client, err := New(opts, Deps{
			Service:        deps.Service,
			Meter:          deps.Meter,
			Logger:         deps.Logger,
			TokenSource:    deps.TokenSources[name],
			HeaderProvider: deps.HeaderProviders[name],
			Base:           deps.Base,
		})
		if err != nil {
			return nil, err
		}
		clients[name] = client
	}

	return &Registry{clients: clients}, nil
}

// Get returns a client by name.
func (r *Registry) Get(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrClientNotFound, name)
	}
	return client, nil
}

// Names returns the registered client names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
