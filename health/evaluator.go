package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apiaryhq/servicekit/observe"
)

// evaluator owns the threshold state for one registered check. All
// mutation happens inside Evaluate under the per-check mutex; readers
// only ever see the atomically published snapshot.
type evaluator struct {
	name    string
	checker Checker
	opts    CheckOptions
	logger  observe.Logger

	mu    sync.Mutex // serializes evaluations of this check
	state CheckState
	snap  atomic.Pointer[Snapshot]
}

func newEvaluator(name string, checker Checker, opts CheckOptions, logger observe.Logger) *evaluator {
	e := &evaluator{
		name:    name,
		checker: checker,
		opts:    opts,
		logger:  logger,
	}
	// A check starts Unknown and optimistically passing; startup
	// pessimism is the aggregator's job via BlockReadinessOnStartup.
	e.state.Passing = true
	snap := snapshotOf(name, opts, e.state)
	e.snap.Store(&snap)
	return e
}

// Snapshot returns the most recently published state. Safe to call
// concurrently with ongoing evaluations.
func (e *evaluator) Snapshot() Snapshot {
	return *e.snap.Load()
}

// Evaluate runs the check once and commits the outcome. If a previous
// evaluation of the same check is still in flight, this cycle is
// skipped rather than overlapping it.
func (e *evaluator) Evaluate(ctx context.Context) {
	if !e.mu.TryLock() {
		return
	}
	defer e.mu.Unlock()

	res := e.run(ctx)
	e.apply(ctx, res)

	snap := snapshotOf(e.name, e.opts, e.state)
	e.snap.Store(&snap)
}

// run executes the check body with the configured deadline. A stuck or
// panicking body never takes the evaluator down with it.
func (e *evaluator) run(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				res := Unhealthy(fmt.Sprintf("check panicked: %v", r), ErrCheckPanic)
				res.Duration = time.Since(start)
				resultCh <- res
			}
		}()
		result := e.checker.Check(ctx)
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}

// apply maps the raw result to pass/fail under the readiness threshold
// and advances the consecutive counters. Passing flips only when the
// configured threshold is crossed.
func (e *evaluator) apply(ctx context.Context, res Result) {
	st := &e.state
	st.Status = res.Status
	st.LastCheckedAt = time.Now()
	st.Duration = res.Duration
	st.Err = ""
	if res.Error != nil {
		st.Err = res.Error.Error()
	}

	wasPassing := st.Passing

	if e.opts.ReadinessThreshold.Passes(res.Status) {
		st.ConsecutiveSuccesses++
		st.ConsecutiveFailures = 0
		if st.ConsecutiveSuccesses >= e.opts.SuccessThreshold {
			st.Passing = true
		}
	} else {
		st.ConsecutiveFailures++
		st.ConsecutiveSuccesses = 0
		if st.ConsecutiveFailures >= e.opts.FailureThreshold {
			st.Passing = false
		}
	}

	if st.Passing != wasPassing {
		if st.Passing {
			e.logger.Info(ctx, "health check recovered",
				observe.Field{Key: "check", Value: e.name},
				observe.Field{Key: "status", Value: res.Status.String()},
			)
		} else {
			e.logger.Warn(ctx, "health check failing",
				observe.Field{Key: "check", Value: e.name},
				observe.Field{Key: "status", Value: res.Status.String()},
				observe.Field{Key: "error", Value: st.Err},
				observe.Field{Key: "consecutive_failures", Value: st.ConsecutiveFailures},
			)
		}
	}
}
