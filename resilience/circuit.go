package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// windowBuckets is the number of rotating buckets the sampling window
// is divided into.
const windowBuckets = 10

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureRatio is the failure ratio over the sampling window that
	// trips the circuit. Must be in (0, 1].
	// Default: 0.5
	FailureRatio float64

	// SamplingDuration is the rolling window over which the failure
	// ratio is computed.
	// Default: 30 seconds
	SamplingDuration time.Duration

	// MinimumThroughput is the number of requests that must be observed
	// in the window before the ratio is acted on.
	// Default: 10
	MinimumThroughput int

	// BreakDuration is how long the circuit stays open before
	// half-opening to probe.
	// Default: 15 seconds
	BreakDuration time.Duration

	// HalfOpenMaxProbes is the max requests allowed in half-open state.
	// Default: 1
	HalfOpenMaxProbes int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

type bucket struct {
	total    int64
	failures int64
}

// CircuitBreaker implements a failure-ratio circuit breaker over a
// rolling sampling window. Outcomes are counted in rotating buckets;
// the circuit trips when enough requests have been observed and the
// failure ratio crosses the configured threshold.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	buckets       [windowBuckets]bucket
	bucketIdx     int
	bucketStart   time.Time
	openedAt      time.Time
	halfOpenCount int

	now func() time.Time // test hook
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureRatio <= 0 || config.FailureRatio > 1 {
		config.FailureRatio = 0.5
	}
	if config.SamplingDuration <= 0 {
		config.SamplingDuration = 30 * time.Second
	}
	if config.MinimumThroughput <= 0 {
		config.MinimumThroughput = 10
	}
	if config.BreakDuration <= 0 {
		config.BreakDuration = 15 * time.Second
	}
	if config.HalfOpenMaxProbes <= 0 {
		config.HalfOpenMaxProbes = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	cb := &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
	cb.bucketStart = cb.now()
	return cb
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset resets the circuit breaker to closed state and clears the window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.resetWindowLocked()
	cb.halfOpenCount = 0

	if oldState != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, StateClosed)
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxProbes {
			return ErrCircuitOpen
		}
		cb.halfOpenCount++
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)
	oldState := cb.state
	now := cb.now()

	switch cb.state {
	case StateClosed:
		cb.advanceWindowLocked(now)
		b := &cb.buckets[cb.bucketIdx]
		b.total++
		if isFailure {
			b.failures++
		}

		total, failures := cb.windowTotalsLocked()
		if total >= int64(cb.config.MinimumThroughput) &&
			float64(failures)/float64(total) >= cb.config.FailureRatio {
			cb.state = StateOpen
			cb.openedAt = now
		}

	case StateHalfOpen:
		if isFailure {
			// Failed probe, open for a fresh break period
			cb.state = StateOpen
			cb.openedAt = now
		} else {
			cb.state = StateClosed
			cb.resetWindowLocked()
		}
	}

	if oldState != cb.state && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, cb.state)
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.BreakDuration {
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
		if cb.config.OnStateChange != nil {
			cb.config.OnStateChange(StateOpen, StateHalfOpen)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) bucketWidth() time.Duration {
	return cb.config.SamplingDuration / windowBuckets
}

// advanceWindowLocked rotates expired buckets so counts older than the
// sampling duration fall out of the totals.
func (cb *CircuitBreaker) advanceWindowLocked(now time.Time) {
	width := cb.bucketWidth()
	elapsed := now.Sub(cb.bucketStart)
	if elapsed < width {
		return
	}

	steps := int(elapsed / width)
	if steps >= windowBuckets {
		cb.resetWindowLocked()
		return
	}

	for i := 0; i < steps; i++ {
		cb.bucketIdx = (cb.bucketIdx + 1) % windowBuckets
		cb.buckets[cb.bucketIdx] = bucket{}
	}
	cb.bucketStart = cb.bucketStart.Add(width * time.Duration(steps))
}

func (cb *CircuitBreaker) resetWindowLocked() {
	for i := range cb.buckets {
		cb.buckets[i] = bucket{}
	}
	cb.bucketIdx = 0
	cb.bucketStart = cb.now()
}

func (cb *CircuitBreaker) windowTotalsLocked() (total, failures int64) {
	for _, b := range cb.buckets {
		total += b.total
		failures += b.failures
	}
	return total, failures
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	total, failures := cb.windowTotalsLocked()
	return CircuitBreakerMetrics{
		State:    cb.currentStateLocked(),
		Total:    total,
		Failures: failures,
		OpenedAt: cb.openedAt,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics over the
// current sampling window.
type CircuitBreakerMetrics struct {
	State    State
	Total    int64
	Failures int64
	OpenedAt time.Time
}
