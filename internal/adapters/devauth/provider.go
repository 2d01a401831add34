package devauth

// Package devauth provides a simple, config-driven AuthProvider for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
)

// Code is the only authorization code Exchange accepts.
const Code = "dev"

var (
	_ ports.AuthProvider        = (*Provider)(nil)
	_ ports.AccessTokenVerifier = (*Provider)(nil)
)

// Config controls the dev auth provider behavior.
// UserID and Email are required; Role is placed in the "pds_role" claim.
type Config struct {
	UserID          string
	Email           string
	FirstName       string
	LastName        string
	Role            string
	Groups          []string
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.AuthProvider for local development.
// It short-circuits the OAuth flow by redirecting back to our own callback
// with locally generated state and nonce.
type Provider struct {
	mu              sync.Mutex
	identity        domainauth.Identity
	sessionDuration time.Duration
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	claims := map[string]any{"sub": cfg.UserID, "email": cfg.Email}
	if cfg.Role != "" {
		claims["pds_role"] = cfg.Role
	}
	return &Provider{
		identity: domainauth.Identity{
			UserID:    cfg.UserID,
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
			Email:     cfg.Email,
			Groups:    append([]string(nil), cfg.Groups...),
			Claims:    claims,
			ExpiresAt: time.Now().Add(dur),
		},
		sessionDuration: dur,
	}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (ports.BeginOutput, error) {
	state, err := randomString(24)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate nonce: %w", err)
	}
	verifier, err := randomString(43)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate verifier: %w", err)
	}
	// Our standard handler expects GET /auth/callback?code=...&state=...
	q := url.Values{"code": {Code}, "state": {state}}
	return ports.BeginOutput{
		AuthURL:  "/auth/callback?" + q.Encode(),
		State:    state,
		Nonce:    nonce,
		Verifier: verifier,
	}, nil
}

// Exchange returns the dev identity for the dev code. State and nonce are validated by the handler.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code != Code {
		return domainauth.Identity{}, errors.New("dev auth: unknown authorization code")
	}
	return p.current(), nil
}

// VerifyAccessToken accepts any non-empty token and returns the dev identity.
func (p *Provider) VerifyAccessToken(_ context.Context, token string) (domainauth.Identity, error) {
	if token == "" {
		return domainauth.Identity{}, errors.New("access token is required")
	}
	return p.current(), nil
}

func (p *Provider) current() domainauth.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Refresh expiry on each exchange for convenience
	if time.Until(p.identity.ExpiresAt) < 5*time.Minute {
		p.identity.ExpiresAt = time.Now().Add(p.sessionDuration)
	}
	id := p.identity
	id.Groups = append([]string(nil), p.identity.Groups...)
	return id
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least n base64 URL chars
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
