package httpclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// JWTTokenSourceConfig configures a self-signing JWT token source for
// internal service-to-service authentication.
type JWTTokenSourceConfig struct {
	// Key is the HMAC signing key. Required.
	Key []byte

	// Issuer is the iss claim, typically the calling service name.
	Issuer string

	// Subject is the sub claim.
	Subject string

	// Audience is the aud claim, typically the target service name.
	Audience string

	// TTL is the token lifetime.
	// Default: 5 minutes
	TTL time.Duration

	// RefreshSkew renews the cached token this long before expiry.
	// Default: 30 seconds
	RefreshSkew time.Duration
}

// jwtTokenSource mints and caches HS256 tokens. Concurrent refreshes
// collapse to a single signing via singleflight.
type jwtTokenSource struct {
	config JWTTokenSourceConfig

	mu      sync.RWMutex
	token   string
	expires time.Time

	group singleflight.Group
	now   func() time.Time
}

// NewJWTTokenSource creates a TokenSource that signs short-lived HS256
// tokens with the given key, caching them until shortly before expiry.
func NewJWTTokenSource(config JWTTokenSourceConfig) (TokenSource, error) {
	if len(config.Key) == 0 {
		return nil, fmt.Errorf("%w: signing key is required", ErrInvalidOptions)
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.RefreshSkew <= 0 {
		config.RefreshSkew = 30 * time.Second
	}

	s := &jwtTokenSource{
		config: config,
		now:    time.Now,
	}
	return s.Token, nil
}

// Token returns the cached token, minting a new one when the cached
// token is missing or close to expiry.
func (s *jwtTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token, expires := s.token, s.expires
	s.mu.RUnlock()

	if token != "" && s.now().Add(s.config.RefreshSkew).Before(expires) {
		return token, nil
	}

	v, err, _ := s.group.Do("token", func() (any, error) {
		return s.mint()
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *jwtTokenSource) mint() (string, error) {
	now := s.now()
	expires := now.Add(s.config.TTL)

	claims := jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   s.config.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Key)
	if err != nil {
		return "", fmt.Errorf("httpclient: signing token: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.expires = expires
	s.mu.Unlock()

	return token, nil
}
