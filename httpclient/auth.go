package httpclient

import (
	"context"
	"fmt"
	"net/http"
)

// defaultAPIKeyHeader is used when api_key auth does not name a header.
const defaultAPIKeyHeader = "X-Api-Key"

// TokenSource produces a bearer token for an outgoing request. It is
// invoked per attempt so a retried request always carries a fresh
// token.
type TokenSource func(ctx context.Context) (string, error)

// HeaderProvider injects arbitrary authentication headers for custom
// auth schemes.
type HeaderProvider interface {
	// Apply mutates the outgoing request's headers.
	Apply(ctx context.Context, req *http.Request) error
}

// HeaderProviderFunc adapts a function to the HeaderProvider interface.
type HeaderProviderFunc func(ctx context.Context, req *http.Request) error

// Apply calls the underlying function.
func (f HeaderProviderFunc) Apply(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}

// apiKeyTransport sets a static header on every request.
type apiKeyTransport struct {
	next   http.RoundTripper
	header string
	value  string
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(t.header, t.value)
	return t.next.RoundTrip(req)
}

// bearerTransport fetches a token per request and sets the
// Authorization header. An empty token fails the request before any
// network I/O.
type bearerTransport struct {
	next   http.RoundTripper
	source TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source(req.Context())
	if err != nil {
		return nil, fmt.Errorf("httpclient: fetching bearer token: %w", err)
	}
	if token == "" {
		return nil, ErrEmptyToken
	}

	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.next.RoundTrip(req)
}

// customTransport delegates header injection to a HeaderProvider.
type customTransport struct {
	next     http.RoundTripper
	provider HeaderProvider
}

func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if err := t.provider.Apply(req.Context(), req); err != nil {
		return nil, fmt.Errorf("httpclient: applying auth headers: %w", err)
	}
	return t.next.RoundTrip(req)
}
