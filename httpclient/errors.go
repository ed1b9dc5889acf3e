package httpclient

import "errors"

var (
	// ErrInvalidOptions indicates invalid client configuration.
	ErrInvalidOptions = errors.New("httpclient: invalid options")

	// ErrMissingBaseAddress indicates a client without a base address.
	ErrMissingBaseAddress = errors.New("httpclient: base address is required")

	// ErrInvalidBaseAddress indicates a base address that is not an
	// absolute URI.
	ErrInvalidBaseAddress = errors.New("httpclient: base address must be an absolute URI")

	// ErrMissingTokenSource indicates bearer auth without a token source.
	ErrMissingTokenSource = errors.New("httpclient: bearer auth requires a token source")

	// ErrMissingHeaderProvider indicates custom auth without a provider.
	ErrMissingHeaderProvider = errors.New("httpclient: custom auth requires a header provider")

	// ErrEmptyToken indicates a token source returned an empty token.
	// The request is failed before any network I/O.
	ErrEmptyToken = errors.New("httpclient: token source returned an empty token")

	// ErrClientNotFound indicates an unknown client name in a registry.
	ErrClientNotFound = errors.New("httpclient: client not found")
)
