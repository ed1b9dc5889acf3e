package health_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"time"

	"github.com/apiaryhq/servicekit/health"
)

func ExampleNewCheckerFunc() {
	dbChecker := health.NewCheckerFunc("database", func(ctx context.Context) health.Result {
		// Simulate a successful ping
		return health.Healthy("database connected")
	})

	ctx := context.Background()
	result := dbChecker.Check(ctx)

	fmt.Println("Checker name:", dbChecker.Name())
	fmt.Println("Status:", result.Status.String())
	fmt.Println("Message:", result.Message)
	// Output:
	// Checker name: database
	// Status: healthy
	// Message: database connected
}

func ExampleHealthy() {
	result := health.Healthy("all systems operational")

	fmt.Println("Status:", result.Status.String())
	fmt.Println("Message:", result.Message)
	// Output:
	// Status: healthy
	// Message: all systems operational
}

func ExampleUnhealthy() {
	err := errors.New("connection refused")
	result := health.Unhealthy("database unreachable", err)

	fmt.Println("Status:", result.Status.String())
	fmt.Println("Has error:", result.Error != nil)
	// Output:
	// Status: unhealthy
	// Has error: true
}

func ExampleNewRegistry() {
	registry := health.NewRegistry(health.RegistryConfig{Service: "orders"})

	_ = registry.Register("database", health.NewCheckerFunc("database", func(ctx context.Context) health.Result {
		return health.Healthy("connected")
	}))
	_ = registry.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}), func(o *health.CheckOptions) {
		o.AffectsReadiness = false
	})

	for _, s := range registry.Snapshots() {
		fmt.Printf("%s affects readiness: %v\n", s.Name, s.AffectsReadiness)
	}
	// Output:
	// database affects readiness: true
	// memory affects readiness: false
}

func ExampleRegistry_IsReady() {
	registry := health.NewRegistry(health.RegistryConfig{Service: "orders"})

	_ = registry.Register("database", health.NewCheckerFunc("database", func(ctx context.Context) health.Result {
		return health.Unhealthy("down", errors.New("connection refused"))
	}), func(o *health.CheckOptions) {
		o.FailureThreshold = 3
	})

	ctx := context.Background()

	// The check must fail three consecutive times before readiness drops.
	for i := 0; i < 3; i++ {
		fmt.Printf("After %d failures ready: %v\n", i, registry.IsReady())
		_ = registry.Evaluate(ctx, "database")
	}
	fmt.Println("After 3 failures ready:", registry.IsReady())
	// Output:
	// After 0 failures ready: true
	// After 1 failures ready: true
	// After 2 failures ready: true
	// After 3 failures ready: false
}

func ExampleNewGate() {
	registry := health.NewRegistry(health.RegistryConfig{Service: "orders"})
	_ = registry.Register("database", health.NewCheckerFunc("database", func(ctx context.Context) health.Result {
		return health.Unhealthy("down", errors.New("connection refused"))
	}))

	ctx := context.Background()
	_ = registry.Evaluate(ctx, "database")

	gate, _ := health.NewGate("orders", registry, nil, nil)

	handler := gate.Wrap(func(ctx context.Context) error {
		fmt.Println("message processed")
		return nil
	})

	err := handler(ctx)
	fmt.Println("Rejected:", health.IsNotReady(err))
	fmt.Println("Requeue after:", health.RequeueDelay)
	// Output:
	// Rejected: true
	// Requeue after: 5s
}

func ExampleReadinessThreshold() {
	degraded := health.Degraded("high latency")

	fmt.Println("Degraded passes default threshold:", health.ThresholdDegraded.Passes(degraded.Status))
	fmt.Println("Degraded passes strict threshold:", health.ThresholdHealthy.Passes(degraded.Status))
	// Output:
	// Degraded passes default threshold: true
	// Degraded passes strict threshold: false
}

func ExampleLivenessHandler() {
	handler := health.LivenessHandler()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	fmt.Println("Status code:", rec.Code)
	fmt.Println("Body:", rec.Body.String())
	// Output:
	// Status code: 200
	// Body: OK
}

func ExampleReadinessHandler() {
	registry := health.NewRegistry(health.RegistryConfig{Service: "orders"})
	_ = registry.Register("database", health.NewCheckerFunc("database", func(ctx context.Context) health.Result {
		return health.Healthy("connected")
	}))
	_ = registry.Evaluate(context.Background(), "database")

	handler := health.ReadinessHandler(registry)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	fmt.Println("Status code:", rec.Code)
	// Output:
	// Status code: 200
}

func ExampleRegistry_Start() {
	registry := health.NewRegistry(health.RegistryConfig{Service: "orders"})
	_ = registry.Register("database", health.NewCheckerFunc("database", func(ctx context.Context) health.Result {
		return health.Healthy("connected")
	}), func(o *health.CheckOptions) {
		o.Interval = 10 * time.Millisecond
	})

	ctx := context.Background()
	registry.Start(ctx)
	defer registry.Stop()

	// The first evaluation runs immediately.
	time.Sleep(5 * time.Millisecond)
	fmt.Println("Ready:", registry.IsReady())
	// Output:
	// Ready: true
}
