package health

import (
	"fmt"
	"sync"
	"time"
)

// ReadinessThreshold determines which raw statuses count as passing
// for readiness purposes.
type ReadinessThreshold int

const (
	// ThresholdDegraded treats both Healthy and Degraded as passing.
	ThresholdDegraded ReadinessThreshold = iota
	// ThresholdHealthy treats only Healthy as passing.
	ThresholdHealthy
)

// String returns the string representation of the threshold.
func (t ReadinessThreshold) String() string {
	switch t {
	case ThresholdHealthy:
		return "healthy"
	default:
		return "degraded"
	}
}

// Passes reports whether the raw status counts as passing under this threshold.
func (t ReadinessThreshold) Passes(s Status) bool {
	switch t {
	case ThresholdHealthy:
		return s == StatusHealthy
	default:
		return s == StatusHealthy || s == StatusDegraded
	}
}

// CheckOptions configures a single registered health check.
type CheckOptions struct {
	// Interval is how often the check is evaluated.
	// Default: 30 seconds
	Interval time.Duration

	// Timeout bounds a single evaluation of the check body.
	// Default: 5 seconds
	Timeout time.Duration

	// AffectsReadiness includes this check in the readiness computation.
	// Checks with AffectsReadiness false are informational only.
	// Default: true
	AffectsReadiness bool

	// BlockReadinessOnStartup forces the service not-ready until this
	// check has reported at least once.
	BlockReadinessOnStartup bool

	// ReadinessThreshold maps raw statuses to pass/fail before
	// threshold counting.
	// Default: ThresholdDegraded
	ReadinessThreshold ReadinessThreshold

	// FailureThreshold is the number of consecutive failing evaluations
	// required before the check stops passing for readiness.
	// Default: 1
	FailureThreshold int

	// SuccessThreshold is the number of consecutive passing evaluations
	// required before the check starts passing for readiness again.
	// Default: 1
	SuccessThreshold int
}

// DefaultCheckOptions returns the default per-check configuration.
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Interval:         30 * time.Second,
		Timeout:          5 * time.Second,
		AffectsReadiness: true,
		FailureThreshold: 1,
		SuccessThreshold: 1,
	}
}

// Validate checks the options for invalid values.
func (o CheckOptions) Validate() error {
	if o.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidOptions, o.Interval)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidOptions, o.Timeout)
	}
	if o.FailureThreshold < 1 {
		return fmt.Errorf("%w: failure threshold must be >= 1, got %d", ErrInvalidOptions, o.FailureThreshold)
	}
	if o.SuccessThreshold < 1 {
		return fmt.Errorf("%w: success threshold must be >= 1, got %d", ErrInvalidOptions, o.SuccessThreshold)
	}
	return nil
}

// OptionsFunc mutates the default options for a named check. Funcs are
// applied at registration time, before any instance of the check exists.
type OptionsFunc func(*CheckOptions)

// DefaultsTable maps check names to default-option mutators applied
// during registration. A table is owned by a Registry; mutators for a
// name run in the order they were added, against DefaultCheckOptions,
// before any explicit options passed to Register.
type DefaultsTable struct {
	mu    sync.RWMutex
	funcs map[string][]OptionsFunc
}

// NewDefaultsTable creates an empty defaults table.
func NewDefaultsTable() *DefaultsTable {
	return &DefaultsTable{funcs: make(map[string][]OptionsFunc)}
}

// Add associates a default-options mutator with a check name.
func (t *DefaultsTable) Add(name string, fn OptionsFunc) {
	if name == "" || fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[name] = append(t.funcs[name], fn)
}

// Resolve builds the effective starting options for a check name.
func (t *DefaultsTable) Resolve(name string) CheckOptions {
	opts := DefaultCheckOptions()
	t.mu.RLock()
	funcs := t.funcs[name]
	t.mu.RUnlock()
	for _, fn := range funcs {
		fn(&opts)
	}
	return opts
}
