package health

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/apiaryhq/servicekit/observe"
)

type staticProvider struct {
	snapshots []Snapshot
}

func (p *staticProvider) Snapshots() []Snapshot {
	return p.snapshots
}

func TestGate_BeforeReady(t *testing.T) {
	provider := &staticProvider{snapshots: []Snapshot{
		{Name: "db", AffectsReadiness: true, Status: StatusHealthy, Passing: true},
	}}

	gate, err := NewGate("payments", provider, nil, observe.NopLogger())
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	if err := gate.Before(context.Background()); err != nil {
		t.Errorf("Before() error = %v, want nil", err)
	}
}

func TestGate_BeforeNotReady(t *testing.T) {
	provider := &staticProvider{snapshots: []Snapshot{
		{Name: "db", AffectsReadiness: true, Status: StatusUnhealthy, Passing: false},
		{Name: "queue", AffectsReadiness: true, BlockReadinessOnStartup: true, Status: StatusUnknown, Passing: true},
		{Name: "memory", AffectsReadiness: false, Status: StatusUnhealthy, Passing: false},
	}}

	gate, err := NewGate("payments", provider, nil, observe.NopLogger())
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	err = gate.Before(context.Background())
	if err == nil {
		t.Fatal("Before() error = nil, want *NotReadyError")
	}

	var notReady *NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("Before() error type = %T, want *NotReadyError", err)
	}
	if notReady.Service != "payments" {
		t.Errorf("Service = %q, want %q", notReady.Service, "payments")
	}
	if len(notReady.Checks) != 2 {
		t.Fatalf("Checks = %v, want [db queue]", notReady.Checks)
	}
	if notReady.Checks[0] != "db" || notReady.Checks[1] != "queue" {
		t.Errorf("Checks = %v, want [db queue]", notReady.Checks)
	}
}

func TestGate_Wrap(t *testing.T) {
	provider := &staticProvider{snapshots: []Snapshot{
		{Name: "db", AffectsReadiness: true, Status: StatusUnhealthy, Passing: false},
	}}

	gate, err := NewGate("payments", provider, nil, observe.NopLogger())
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	called := false
	handler := gate.Wrap(func(ctx context.Context) error {
		called = true
		return nil
	})

	if err := handler(context.Background()); !IsNotReady(err) {
		t.Errorf("wrapped handler error = %v, want NotReadyError", err)
	}
	if called {
		t.Error("handler ran while the service was not ready")
	}

	provider.snapshots[0] = Snapshot{Name: "db", AffectsReadiness: true, Status: StatusHealthy, Passing: true}
	if err := handler(context.Background()); err != nil {
		t.Errorf("wrapped handler error = %v, want nil", err)
	}
	if !called {
		t.Error("handler did not run while the service was ready")
	}
}

func TestGate_RejectionCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	provider := &staticProvider{snapshots: []Snapshot{
		{Name: "db", AffectsReadiness: true, Status: StatusUnhealthy, Passing: false},
	}}

	gate, err := NewGate("payments", provider, meter, observe.NopLogger())
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		_ = gate.Before(context.Background())
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "readiness.gate.rejected" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric data type = %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 3 {
		t.Errorf("readiness.gate.rejected = %d, want 3", total)
	}
}
