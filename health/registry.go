package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apiaryhq/servicekit/observe"
)

// StateProvider exposes a consistent point-in-time read of all check
// states, in registration order.
type StateProvider interface {
	Snapshots() []Snapshot
}

// Ready computes aggregate readiness from a set of snapshots.
//
// The service is ready iff every check with AffectsReadiness is
// currently passing. A check with BlockReadinessOnStartup that has
// never been evaluated (still Unknown) forces not-ready regardless.
// Checks with AffectsReadiness false are informational only.
func Ready(snapshots []Snapshot) bool {
	for _, s := range snapshots {
		if s.BlockReadinessOnStartup && s.Status == StatusUnknown {
			return false
		}
		if s.AffectsReadiness && !s.Passing {
			return false
		}
	}
	return true
}

// RegistryConfig configures a health check registry.
type RegistryConfig struct {
	// Service is the service name attached to gate errors and logs.
	Service string

	// Logger receives check transition logs. Default: no-op.
	Logger observe.Logger

	// Defaults is the per-name default-options table consulted at
	// registration. Default: empty table.
	Defaults *DefaultsTable
}

// Registry owns the full set of registered checks and their periodic
// evaluation. Each check runs on its own timer; checks are fully
// independent and never serialize behind one another.
type Registry struct {
	service  string
	logger   observe.Logger
	defaults *DefaultsTable

	mu         sync.Mutex
	evaluators map[string]*evaluator
	order      []string
	started    bool
	stop       chan struct{}
	wg         sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	defaults := cfg.Defaults
	if defaults == nil {
		defaults = NewDefaultsTable()
	}

	return &Registry{
		service:    cfg.Service,
		logger:     logger,
		defaults:   defaults,
		evaluators: make(map[string]*evaluator),
		stop:       make(chan struct{}),
	}
}

// Service returns the configured service name.
func (r *Registry) Service() string {
	return r.service
}

// Register adds a named check. Effective options start from the
// defaults table entry for the name, then any explicit mutators are
// applied in order. Registration fails on invalid options, duplicate
// names, or a registry that has already been started.
func (r *Registry) Register(name string, checker Checker, opts ...OptionsFunc) error {
	if name == "" {
		return fmt.Errorf("%w: empty check name", ErrInvalidOptions)
	}
	if checker == nil {
		return fmt.Errorf("%w: nil checker for %q", ErrInvalidOptions, name)
	}

	resolved := r.defaults.Resolve(name)
	for _, fn := range opts {
		fn(&resolved)
	}
	if err := resolved.Validate(); err != nil {
		return fmt.Errorf("check %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRegistryStarted
	}
	if _, exists := r.evaluators[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}

	r.evaluators[name] = newEvaluator(name, checker, resolved, r.logger)
	r.order = append(r.order, name)
	return nil
}

// Start begins periodic evaluation of every registered check, each on
// its own independent timer with an immediate first evaluation. It
// returns once all evaluation loops are running.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	evaluators := make([]*evaluator, 0, len(r.order))
	for _, name := range r.order {
		evaluators = append(evaluators, r.evaluators[name])
	}
	r.mu.Unlock()

	for _, e := range evaluators {
		r.wg.Add(1)
		go r.loop(ctx, e)
	}
}

// Stop halts all evaluation loops and waits for in-flight evaluations
// to complete.
func (r *Registry) Stop() {
	r.mu.Lock()
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Registry) loop(ctx context.Context, e *evaluator) {
	defer r.wg.Done()

	e.Evaluate(ctx)

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Evaluate(ctx)
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Evaluate runs a single named check once, outside its timer. Useful
// for tests and forced refreshes.
func (r *Registry) Evaluate(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.evaluators[name]
	r.mu.Unlock()

	if !ok {
		return ErrCheckerNotFound
	}
	e.Evaluate(ctx)
	return nil
}

// Snapshots returns the current state of every check in registration
// order. Each snapshot is the atomically published result of that
// check's most recent completed evaluation; reads never block
// evaluators.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	evaluators := make([]*evaluator, 0, len(r.order))
	for _, name := range r.order {
		evaluators = append(evaluators, r.evaluators[name])
	}
	r.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(evaluators))
	for _, e := range evaluators {
		snapshots = append(snapshots, e.Snapshot())
	}
	return snapshots
}

// IsReady recomputes aggregate readiness from the latest snapshots.
// It is never cached; every query reflects the most recent completed
// evaluations.
func (r *Registry) IsReady() bool {
	return Ready(r.Snapshots())
}
