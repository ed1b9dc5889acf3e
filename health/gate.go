package health

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/apiaryhq/servicekit/observe"
)

// RequeueDelay is the advisory pause callers should apply before
// requeueing work rejected by the gate. Readiness is expected to be
// transient; rejected work should be retried, not discarded.
const RequeueDelay = 5 * time.Second

// Gate rejects inbound work while the aggregate service readiness is
// false. It holds no state beyond a rejection counter; retry and
// requeue policy belong to the caller.
type Gate struct {
	service  string
	provider StateProvider
	logger   observe.Logger
	rejected metric.Int64Counter
}

// NewGate creates a readiness gate over the given state provider.
// A nil meter disables the rejection counter.
func NewGate(service string, provider StateProvider, meter metric.Meter, logger observe.Logger) (*Gate, error) {
	if logger == nil {
		logger = observe.NopLogger()
	}
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("noop")
	}

	rejected, err := meter.Int64Counter(
		"readiness.gate.rejected",
		metric.WithDescription("Units of work rejected because the service was not ready"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &Gate{
		service:  service,
		provider: provider,
		logger:   logger,
		rejected: rejected,
	}, nil
}

// Before is consulted prior to dispatching a unit of work. It returns
// nil when the service is ready, otherwise a *NotReadyError naming the
// checks that are blocking readiness.
func (g *Gate) Before(ctx context.Context) error {
	snapshots := g.provider.Snapshots()
	if Ready(snapshots) {
		return nil
	}

	blocked := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		if s.BlockReadinessOnStartup && s.Status == StatusUnknown {
			blocked = append(blocked, s.Name)
			continue
		}
		if s.AffectsReadiness && !s.Passing {
			blocked = append(blocked, s.Name)
		}
	}

	g.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", g.service),
	))
	g.logger.Warn(ctx, "work rejected: service not ready",
		observe.Field{Key: "service", Value: g.service},
		observe.Field{Key: "blocked_by", Value: blocked},
	)

	return &NotReadyError{Service: g.service, Checks: blocked}
}

// Wrap guards a handler function with the gate. The handler runs only
// when the service is ready; otherwise the NotReadyError is returned
// for the caller to requeue after RequeueDelay.
func (g *Gate) Wrap(next func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := g.Before(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}
