package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apiaryhq/servicekit/resilience"
)

func TestNew_FactoryRequirements(t *testing.T) {
	opts := validOptions()
	opts.Authentication.Type = AuthBearer

	if _, err := New(opts, Deps{}); !errors.Is(err, ErrMissingTokenSource) {
		t.Errorf("New() bearer without source error = %v, want ErrMissingTokenSource", err)
	}

	opts.Authentication.Type = AuthCustom
	if _, err := New(opts, Deps{}); !errors.Is(err, ErrMissingHeaderProvider) {
		t.Errorf("New() custom without provider error = %v, want ErrMissingHeaderProvider", err)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := validOptions()
	opts.BaseAddress = "not a url at all\x00"
	if _, err := New(opts, Deps{}); err == nil {
		t.Error("New() with invalid base address succeeded")
	}
}

func TestClient_ResolvesAgainstBasePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:        "billing",
		BaseAddress: srv.URL + "/api/v2",
	}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := client.Get(context.Background(), "/invoices/42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if gotPath != "/api/v2/invoices/42" {
		t.Errorf("request path = %q, want %q", gotPath, "/api/v2/invoices/42")
	}
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:        "billing",
		BaseAddress: srv.URL,
		Resilience:  ResilienceOptions{MaxRetries: 3},
	}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := client.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}

func TestClient_ExhaustedRetriesReturnFinalResponse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:        "billing",
		BaseAddress: srv.URL,
		Resilience:  ResilienceOptions{MaxRetries: 3},
	}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := client.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get() error = %v, want response instead", err)
	}
	resp.Body.Close()

	// The caller gets the final response even though its status was
	// retryable: retries are exhausted.
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if hits.Load() != 4 {
		t.Errorf("server hits = %d, want 4 (1 initial + 3 retries)", hits.Load())
	}
}

func TestClient_NonReplayableBodySingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:        "billing",
		BaseAddress: srv.URL,
		Resilience:  ResilienceOptions{MaxRetries: 3},
	}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// A raw pipe gives the request a body with no GetBody, so it
	// cannot be replayed.
	pr, pw := io.Pipe()
	go func() {
		_, _ = io.WriteString(pw, "payload")
		pw.Close()
	}()

	req, err := client.NewRequest(context.Background(), http.MethodPost, "/ingest", pr)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1 for a non-replayable body", hits.Load())
	}
}

func TestClient_PerAttemptTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:        "billing",
		BaseAddress: srv.URL,
		Resilience: ResilienceOptions{
			MaxRetries:        1,
			PerAttemptTimeout: 20 * time.Millisecond,
		},
	}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Get(context.Background(), "/"); err == nil {
		t.Fatal("Get() succeeded, want per-attempt timeout error")
	}
	// Each attempt got its own deadline, so the retry still ran.
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
}

func TestClient_APIKeyHeader(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:           "billing",
		BaseAddress:    srv.URL,
		Authentication: AuthOptions{Type: AuthAPIKey, Value: "s3cret"},
	}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := client.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if gotHeader != "s3cret" {
		t.Errorf("X-Api-Key = %q, want %q", gotHeader, "s3cret")
	}
}

func TestClient_BearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:           "billing",
		BaseAddress:    srv.URL,
		Authentication: AuthOptions{Type: AuthBearer},
	}, Deps{
		TokenSource: func(ctx context.Context) (string, error) {
			return "tok-123", nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := client.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-123")
	}
}

func TestClient_EmptyTokenFailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:           "billing",
		BaseAddress:    srv.URL,
		Authentication: AuthOptions{Type: AuthBearer},
		Resilience:     ResilienceOptions{MaxRetries: 3},
	}, Deps{
		TokenSource: func(ctx context.Context) (string, error) {
			return "", nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Get(context.Background(), "/")
	if !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("Get() error = %v, want ErrEmptyToken", err)
	}
	// An empty credential is a configuration error, never retried.
	if hits.Load() != 0 {
		t.Errorf("server hits = %d, want 0", hits.Load())
	}
}

func TestClient_CustomHeaderProvider(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:           "billing",
		BaseAddress:    srv.URL,
		Authentication: AuthOptions{Type: AuthCustom},
	}, Deps{
		HeaderProvider: HeaderProviderFunc(func(ctx context.Context, req *http.Request) error {
			req.Header.Set("X-Signature", "sig-xyz")
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := client.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if gotSig != "sig-xyz" {
		t.Errorf("X-Signature = %q, want %q", gotSig, "sig-xyz")
	}
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:        "billing",
		BaseAddress: srv.URL,
		Resilience: ResilienceOptions{
			CircuitBreaker: CircuitBreakerOptions{
				Enabled:           true,
				FailureRatio:      0.5,
				MinimumThroughput: 2,
			},
		},
	}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), "/")
		if err != nil {
			t.Fatalf("Get() #%d error = %v", i, err)
		}
		resp.Body.Close()
	}

	if client.BreakerState() != resilience.StateOpen {
		t.Fatalf("BreakerState() = %v, want open", client.BreakerState())
	}

	if _, err := client.Get(context.Background(), "/"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Get() with open circuit error = %v, want ErrCircuitOpen", err)
	}
}

func TestClient_Bulkhead(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
	}))
	defer srv.Close()

	client, err := New(Options{
		Name:        "billing",
		BaseAddress: srv.URL,
		Resilience:  ResilienceOptions{MaxConcurrentRequests: 1},
	}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := client.Get(context.Background(), "/")
		if err == nil {
			resp.Body.Close()
		}
	}()

	// The held request occupies the only slot once the handler runs.
	<-started
	if _, err := client.Get(context.Background(), "/"); !errors.Is(err, resilience.ErrBulkheadFull) {
		t.Errorf("Get() with a full bulkhead error = %v, want ErrBulkheadFull", err)
	}

	close(release)
	<-done
}

func TestClient_Defaults(t *testing.T) {
	client, err := New(Options{Name: "billing", BaseAddress: "https://billing.internal"}, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.Name() != "billing" {
		t.Errorf("Name() = %q, want billing", client.Name())
	}
	if client.Flavour() != FlavourInternal {
		t.Errorf("Flavour() = %q, want internal", client.Flavour())
	}
	if client.BreakerState() != resilience.StateClosed {
		t.Errorf("BreakerState() = %v, want closed without a breaker", client.BreakerState())
	}
}

func TestRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	configs := map[string]Options{
		"billing":  {BaseAddress: srv.URL},
		"shipping": {BaseAddress: srv.URL, Flavour: FlavourExternal},
	}

	reg, err := NewRegistry(configs, RegistryDeps{Service: "orders"})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	// Names from the config map key fill in for unnamed options.
	client, err := reg.Get("billing")
	if err != nil {
		t.Fatalf("Get(billing) error = %v", err)
	}
	if client.Name() != "billing" {
		t.Errorf("Name() = %q, want billing", client.Name())
	}

	if _, err := reg.Get("nope"); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Get(nope) error = %v, want ErrClientNotFound", err)
	}

	if names := reg.Names(); len(names) != 2 {
		t.Errorf("Names() = %v, want 2 entries", names)
	}
}

func TestRegistry_FailsFastOnInvalidClient(t *testing.T) {
	configs := map[string]Options{
		"good": {BaseAddress: "https://good.internal"},
		"bad":  {BaseAddress: "not-absolute"},
	}

	if _, err := NewRegistry(configs, RegistryDeps{}); err == nil {
		t.Error("NewRegistry() succeeded with an invalid client")
	}
}

func TestDrainLeavesConnectionReusable(t *testing.T) {
	resp := &http.Response{
		Body: io.NopCloser(strings.NewReader(strings.Repeat("x", 100))),
	}
	drain(resp)
	// Draining a nil response must not panic.
	drain(nil)
}
