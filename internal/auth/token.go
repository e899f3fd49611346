package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turbo360/crewupload/pkg/config"
)

var (
	// ErrNotLoggedIn is returned when no token is stored
	ErrNotLoggedIn = errors.New("not logged in. Please run 'crewupload login'")

	// ErrSessionExpired is returned once the stored token has expired or been rejected
	ErrSessionExpired = errors.New("session expired. Please run 'crewupload login' again")
)

// Persister writes the config back to disk
type Persister func(*config.Config) error

// Provider hands out the stored bearer token and forgets it once the server rejects it.
// It satisfies both the tus token source and the upload scheduler's invalidator.
type Provider struct {
	mu      sync.Mutex
	cfg     *config.Config
	persist Persister
	now     func() time.Time
	invalid bool
}

// NewProvider creates a token provider backed by cfg.
// persist may be nil, in which case invalidation only affects this process.
func NewProvider(cfg *config.Config, persist Persister) *Provider {
	return &Provider{cfg: cfg, persist: persist, now: time.Now}
}

// Token returns the stored token if it is still usable
func (p *Provider) Token(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return "", ErrSessionExpired
	}
	if p.cfg.Token == "" {
		return "", ErrNotLoggedIn
	}

	expired, err := isExpired(p.cfg.Token, p.now())
	if err != nil {
		return "", err
	}
	if expired {
		return "", ErrSessionExpired
	}
	return p.cfg.Token, nil
}

// Invalidate drops the stored token. Calling it more than once is a no-op.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return
	}
	p.invalid = true
	p.cfg.Token = ""
	p.cfg.Session = nil

	slog.Info("Server rejected the login token, clearing stored credentials")
	if p.persist == nil {
		return
	}
	if err := p.persist(p.cfg); err != nil {
		slog.Warn("Failed to clear stored credentials", "error", err)
	}
}

// Set stores a freshly issued token
func (p *Provider) Set(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg.Token = token
	p.invalid = false
	if p.persist == nil {
		return nil
	}
	if err := p.persist(p.cfg); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Invalidated reports whether the server rejected the token during this run
func (p *Provider) Invalidated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalid
}

// ParseClaims decodes the claims of a JWT without verifying its signature
func ParseClaims(tokenString string) (jwt.MapClaims, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("failed to parse JWT claims")
	}
	return claims, nil
}

// isExpired checks the exp claim of a JWT.
// Opaque tokens (no dots) and tokens without exp are left to the server to judge.
func isExpired(tokenString string, now time.Time) (bool, error) {
	if strings.Count(tokenString, ".") != 2 {
		return false, nil
	}

	claims, err := ParseClaims(tokenString)
	if err != nil {
		return false, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false, fmt.Errorf("invalid exp claim in JWT: %w", err)
	}
	if exp == nil {
		return false, nil
	}
	return !now.Before(exp.Time), nil
}
