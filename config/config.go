package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apiaryhq/servicekit/health"
	"github.com/apiaryhq/servicekit/httpclient"
	"github.com/apiaryhq/servicekit/secret"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// File is the root of a servicekit configuration document.
type File struct {
	// Service is the owning service name.
	Service string `yaml:"service"`

	// Clients configures outbound HTTP clients, keyed by client name.
	Clients map[string]Client `yaml:"clients"`

	// Checks configures health check defaults, keyed by check name.
	Checks map[string]Check `yaml:"checks"`
}

// Client is the YAML shape of one outbound HTTP client.
type Client struct {
	BaseAddress    string     `yaml:"base_address"`
	Flavour        string     `yaml:"flavour,omitempty"`
	Resilience     Resilience `yaml:"resilience,omitempty"`
	Authentication Auth       `yaml:"authentication,omitempty"`
	Sockets        Sockets    `yaml:"sockets,omitempty"`
}

// Resilience is the YAML shape of a client's resilience options.
type Resilience struct {
	MaxRetries            int            `yaml:"max_retries,omitempty"`
	PerAttemptTimeout     Duration       `yaml:"per_attempt_timeout,omitempty"`
	CircuitBreaker        CircuitBreaker `yaml:"circuit_breaker,omitempty"`
	MaxConcurrentRequests int            `yaml:"max_concurrent_requests,omitempty"`
	RequestsPerSecond     float64        `yaml:"requests_per_second,omitempty"`
}

// CircuitBreaker is the YAML shape of the breaker options.
type CircuitBreaker struct {
	Enabled           bool     `yaml:"enabled"`
	FailureRatio      float64  `yaml:"failure_ratio,omitempty"`
	SamplingDuration  Duration `yaml:"sampling_duration,omitempty"`
	MinimumThroughput int      `yaml:"minimum_throughput,omitempty"`
	BreakDuration     Duration `yaml:"break_duration,omitempty"`
}

// Auth is the YAML shape of a client's authentication options. Value
// supports strict `${VAR}` environment expansion, so credentials stay
// out of the file itself.
type Auth struct {
	Type       string `yaml:"type,omitempty"`
	HeaderName string `yaml:"header_name,omitempty"`
	Value      string `yaml:"value,omitempty"`
}

// Sockets is the YAML shape of the connection pool options.
type Sockets struct {
	PooledConnectionLifetime    Duration `yaml:"pooled_connection_lifetime,omitempty"`
	PooledConnectionIdleTimeout Duration `yaml:"pooled_connection_idle_timeout,omitempty"`
	MaxConnectionsPerServer     int      `yaml:"max_connections_per_server,omitempty"`
}

// Check is the YAML shape of one health check's default options.
// Absent fields keep the library defaults.
type Check struct {
	Interval                Duration `yaml:"interval,omitempty"`
	Timeout                 Duration `yaml:"timeout,omitempty"`
	AffectsReadiness        *bool    `yaml:"affects_readiness,omitempty"`
	BlockReadinessOnStartup bool     `yaml:"block_readiness_on_startup,omitempty"`
	ReadinessThreshold      string   `yaml:"readiness_threshold,omitempty"`
	FailureThreshold        int      `yaml:"failure_threshold,omitempty"`
	SuccessThreshold        int      `yaml:"success_threshold,omitempty"`
}

// Load reads and parses a configuration file, validating everything it
// contains. Any error here should abort service startup.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates a configuration document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every client and check definition, expanding secret
// references so a missing environment variable fails at load time.
func (f *File) Validate() error {
	if _, err := f.ClientOptions(); err != nil {
		return err
	}
	for name, c := range f.Checks {
		opts, err := c.toOptions()
		if err != nil {
			return fmt.Errorf("config: check %q: %w", name, err)
		}
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("config: check %q: %w", name, err)
		}
	}
	return nil
}

// ClientOptions converts the client definitions into validated
// httpclient options keyed by client name.
func (f *File) ClientOptions() (map[string]httpclient.Options, error) {
	out := make(map[string]httpclient.Options, len(f.Clients))

	for name, c := range f.Clients {
		value := c.Authentication.Value
		if value != "" {
			expanded, err := secret.ExpandEnvStrict(value)
			if err != nil {
				return nil, fmt.Errorf("config: client %q: %w", name, err)
			}
			value = expanded
		}

		opts := httpclient.Options{
			Name:        name,
			BaseAddress: c.BaseAddress,
			Flavour:     httpclient.Flavour(c.Flavour),
			Resilience: httpclient.ResilienceOptions{
				MaxRetries:        c.Resilience.MaxRetries,
				PerAttemptTimeout: c.Resilience.PerAttemptTimeout.Std(),
				CircuitBreaker: httpclient.CircuitBreakerOptions{
					Enabled:           c.Resilience.CircuitBreaker.Enabled,
					FailureRatio:      c.Resilience.CircuitBreaker.FailureRatio,
					SamplingDuration:  c.Resilience.CircuitBreaker.SamplingDuration.Std(),
					MinimumThroughput: c.Resilience.CircuitBreaker.MinimumThroughput,
					BreakDuration:     c.Resilience.CircuitBreaker.BreakDuration.Std(),
				},
				MaxConcurrentRequests: c.Resilience.MaxConcurrentRequests,
				RequestsPerSecond:     c.Resilience.RequestsPerSecond,
			},
			Authentication: httpclient.AuthOptions{
				Type:       httpclient.AuthType(c.Authentication.Type),
				HeaderName: c.Authentication.HeaderName,
				Value:      value,
			},
			Sockets: httpclient.SocketsOptions{
				PooledConnectionLifetime:    c.Sockets.PooledConnectionLifetime.Std(),
				PooledConnectionIdleTimeout: c.Sockets.PooledConnectionIdleTimeout.Std(),
				MaxConnectionsPerServer:     c.Sockets.MaxConnectionsPerServer,
			},
		}
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		out[name] = opts
	}

	return out, nil
}

// CheckDefaults builds a defaults table from the check definitions,
// for wiring into a health registry.
func (f *File) CheckDefaults() (*health.DefaultsTable, error) {
	table := health.NewDefaultsTable()

	for name, c := range f.Checks {
		opts, err := c.toOptions()
		if err != nil {
			return nil, fmt.Errorf("config: check %q: %w", name, err)
		}
		table.Add(name, func(o *health.CheckOptions) {
			*o = opts
		})
	}

	return table, nil
}

func (c Check) toOptions() (health.CheckOptions, error) {
	opts := health.DefaultCheckOptions()

	if c.Interval > 0 {
		opts.Interval = c.Interval.Std()
	}
	if c.Timeout > 0 {
		opts.Timeout = c.Timeout.Std()
	}
	if c.AffectsReadiness != nil {
		opts.AffectsReadiness = *c.AffectsReadiness
	}
	opts.BlockReadinessOnStartup = c.BlockReadinessOnStartup
	if c.FailureThreshold > 0 {
		opts.FailureThreshold = c.FailureThreshold
	}
	if c.SuccessThreshold > 0 {
		opts.SuccessThreshold = c.SuccessThreshold
	}

	switch c.ReadinessThreshold {
	case "", "degraded":
		opts.ReadinessThreshold = health.ThresholdDegraded
	case "healthy":
		opts.ReadinessThreshold = health.ThresholdHealthy
	default:
		return opts, fmt.Errorf("unknown readiness threshold %q", c.ReadinessThreshold)
	}

	return opts, nil
}
