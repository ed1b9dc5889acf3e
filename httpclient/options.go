package httpclient

import (
	"fmt"
	"net/url"
	"time"
)

// Flavour distinguishes clients for services inside the platform from
// clients for third parties.
type Flavour string

const (
	// FlavourInternal is a client for another service on the platform.
	FlavourInternal Flavour = "internal"
	// FlavourExternal is a client for a third-party dependency.
	FlavourExternal Flavour = "external"
)

// AuthType selects the authentication stage of a client.
type AuthType string

const (
	// AuthNone disables the authentication stage.
	AuthNone AuthType = ""
	// AuthAPIKey sets a static header on every request.
	AuthAPIKey AuthType = "api_key"
	// AuthBearer fetches a bearer token per request from a TokenSource.
	AuthBearer AuthType = "bearer"
	// AuthCustom delegates header injection to a HeaderProvider.
	AuthCustom AuthType = "custom"
)

// CircuitBreakerOptions configures the client's failure-ratio breaker.
type CircuitBreakerOptions struct {
	// Enabled turns the circuit breaker stage on.
	Enabled bool

	// FailureRatio trips the circuit when the observed failure ratio
	// over SamplingDuration reaches it. Must be in (0, 1].
	// Default: 0.5
	FailureRatio float64

	// SamplingDuration is the rolling window for the failure ratio.
	// Default: 30 seconds
	SamplingDuration time.Duration

	// MinimumThroughput is the number of requests that must be seen in
	// the window before the ratio is acted on.
	// Default: 10
	MinimumThroughput int

	// BreakDuration is how long the circuit stays open.
	// Default: 15 seconds
	BreakDuration time.Duration
}

// ResilienceOptions configures the resilience stages of a client.
type ResilienceOptions struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero disables the retry stage.
	MaxRetries int

	// PerAttemptTimeout bounds each individual attempt, not the whole
	// retry sequence. Zero disables the per-attempt bound.
	PerAttemptTimeout time.Duration

	// CircuitBreaker configures the optional circuit breaker stage.
	CircuitBreaker CircuitBreakerOptions

	// MaxConcurrentRequests bounds in-flight requests through this
	// client. Zero disables the bulkhead stage.
	MaxConcurrentRequests int

	// RequestsPerSecond rate-limits requests through this client.
	// Zero disables the rate-limit stage.
	RequestsPerSecond float64
}

// AuthOptions configures the authentication stage of a client.
type AuthOptions struct {
	// Type selects the authentication mechanism.
	Type AuthType

	// HeaderName is the header the credential is placed in.
	// Default for api_key: "X-Api-Key". Bearer always uses
	// "Authorization".
	HeaderName string

	// Value is the static credential for api_key.
	Value string
}

// SocketsOptions tunes the pooled connection transport.
type SocketsOptions struct {
	// PooledConnectionLifetime bounds how long a pooled connection may
	// be reused. net/http pools by idleness, so the lifetime tightens
	// the idle timeout when it is the smaller of the two.
	PooledConnectionLifetime time.Duration

	// PooledConnectionIdleTimeout is how long an idle connection stays
	// pooled. Default: 90 seconds
	PooledConnectionIdleTimeout time.Duration

	// MaxConnectionsPerServer caps connections per target host.
	// Zero means no limit.
	MaxConnectionsPerServer int
}

// Options is the full configuration of one named client.
type Options struct {
	// Name identifies the client in configuration and telemetry.
	Name string

	// BaseAddress is the absolute base URI all requests resolve
	// against. Required.
	BaseAddress string

	// Flavour marks the client internal or external.
	// Default: internal
	Flavour Flavour

	// Resilience configures retries, timeouts, and the breaker.
	Resilience ResilienceOptions

	// Authentication configures the auth stage.
	Authentication AuthOptions

	// Sockets tunes the connection pool.
	Sockets SocketsOptions
}

// Validate checks the options for configuration errors. It covers the
// static surface only; factory requirements (token sources, header
// providers) are checked by New, which sees the runtime dependencies.
func (o Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("%w: client name is required", ErrInvalidOptions)
	}

	if o.BaseAddress == "" {
		return fmt.Errorf("client %q: %w", o.Name, ErrMissingBaseAddress)
	}
	u, err := url.Parse(o.BaseAddress)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("client %q: %w: %q", o.Name, ErrInvalidBaseAddress, o.BaseAddress)
	}

	switch o.Flavour {
	case "", FlavourInternal, FlavourExternal:
	default:
		return fmt.Errorf("client %q: %w: unknown flavour %q", o.Name, ErrInvalidOptions, o.Flavour)
	}

	switch o.Authentication.Type {
	case AuthNone, AuthAPIKey, AuthBearer, AuthCustom:
	default:
		return fmt.Errorf("client %q: %w: unknown auth type %q", o.Name, ErrInvalidOptions, o.Authentication.Type)
	}
	if o.Authentication.Type == AuthAPIKey && o.Authentication.Value == "" {
		return fmt.Errorf("client %q: %w: api_key auth requires a value", o.Name, ErrInvalidOptions)
	}

	r := o.Resilience
	if r.MaxRetries < 0 {
		return fmt.Errorf("client %q: %w: max retries must be >= 0, got %d", o.Name, ErrInvalidOptions, r.MaxRetries)
	}
	if r.PerAttemptTimeout < 0 {
		return fmt.Errorf("client %q: %w: per-attempt timeout must be >= 0", o.Name, ErrInvalidOptions)
	}
	if r.MaxConcurrentRequests < 0 {
		return fmt.Errorf("client %q: %w: max concurrent requests must be >= 0", o.Name, ErrInvalidOptions)
	}
	if r.RequestsPerSecond < 0 {
		return fmt.Errorf("client %q: %w: requests per second must be >= 0", o.Name, ErrInvalidOptions)
	}

	cb := r.CircuitBreaker
	if cb.Enabled {
		if cb.FailureRatio < 0 || cb.FailureRatio > 1 {
			return fmt.Errorf("client %q: %w: failure ratio must be in (0, 1], got %v", o.Name, ErrInvalidOptions, cb.FailureRatio)
		}
		if cb.SamplingDuration < 0 || cb.BreakDuration < 0 || cb.MinimumThroughput < 0 {
			return fmt.Errorf("client %q: %w: circuit breaker durations and throughput must be >= 0", o.Name, ErrInvalidOptions)
		}
	}

	return nil
}
