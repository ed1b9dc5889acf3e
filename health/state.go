package health

import (
	"time"
)

// CheckState is the mutable threshold-tracking state for one check.
// It is owned exclusively by that check's evaluator and must never be
// read directly by other goroutines; readers consume Snapshots.
type CheckState struct {
	// Status is the raw status of the most recent completed evaluation.
	Status Status

	// LastCheckedAt is when the most recent evaluation completed.
	LastCheckedAt time.Time

	// Duration is how long the most recent evaluation took.
	Duration time.Duration

	// Err is the error from the most recent evaluation, if any.
	Err string

	// ConsecutiveFailures counts failing evaluations since the last pass.
	ConsecutiveFailures int

	// ConsecutiveSuccesses counts passing evaluations since the last fail.
	ConsecutiveSuccesses int

	// Passing is the debounced readiness verdict for this check. It
	// flips only when the configured consecutive threshold is crossed.
	Passing bool
}

// Snapshot is an immutable point-in-time copy of a check's state,
// enriched with its registration identity. Snapshots are published
// atomically after each completed evaluation; a snapshot is never
// mutated after creation.
type Snapshot struct {
	// Name is the registered check name.
	Name string

	// AffectsReadiness mirrors the check's configuration.
	AffectsReadiness bool

	// BlockReadinessOnStartup mirrors the check's configuration.
	BlockReadinessOnStartup bool

	// ReadinessThreshold mirrors the check's configuration.
	ReadinessThreshold ReadinessThreshold

	// Status is the raw status at snapshot time.
	Status Status

	// LastCheckedAt is when the snapshotted evaluation completed.
	// Zero if the check has never been evaluated.
	LastCheckedAt time.Time

	// Duration is how long the snapshotted evaluation took.
	Duration time.Duration

	// Err is the evaluation error, empty if none.
	Err string

	// ConsecutiveFailures at snapshot time.
	ConsecutiveFailures int

	// ConsecutiveSuccesses at snapshot time.
	ConsecutiveSuccesses int

	// Passing is the debounced readiness verdict at snapshot time.
	Passing bool
}

// snapshotOf copies state into an immutable snapshot for the given
// check identity.
func snapshotOf(name string, opts CheckOptions, st CheckState) Snapshot {
	return Snapshot{
		Name:                    name,
		AffectsReadiness:        opts.AffectsReadiness,
		BlockReadinessOnStartup: opts.BlockReadinessOnStartup,
		ReadinessThreshold:      opts.ReadinessThreshold,
		Status:                  st.Status,
		LastCheckedAt:           st.LastCheckedAt,
		Duration:                st.Duration,
		Err:                     st.Err,
		ConsecutiveFailures:     st.ConsecutiveFailures,
		ConsecutiveSuccesses:    st.ConsecutiveSuccesses,
		Passing:                 st.Passing,
	}
}
