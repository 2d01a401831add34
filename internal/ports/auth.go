package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// BeginOutput is what a provider needs the caller to remember between
// Begin and Exchange.
type BeginOutput struct {
	AuthURL  string
	State    string
	Nonce    string
	Verifier string // PKCE code verifier
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code     string
	State    string
	Nonce    string
	Verifier string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL plus the
	// state, nonce and PKCE verifier the callback needs.
	Begin(ctx context.Context, in BeginInput) (BeginOutput, error)

	// Exchange completes the code flow and returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// AccessTokenVerifier turns an implicit-flow access token into an identity.
type AccessTokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (domainauth.Identity, error)
}

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// EventBus fans session events out across instances.
type EventBus interface {
	Publish(ctx context.Context, ev domainauth.Event) error
	// Subscribe delivers events until ctx is done.
	Subscribe(ctx context.Context, fn func(domainauth.Event)) error
}

// NavIntentStore holds the per-session navigation intent.
type NavIntentStore interface {
	// Claim writes the intent if none is held and reports whether it won.
	// When it loses, the current holder is returned.
	Claim(ctx context.Context, sessionID string, intent domainauth.NavIntent, ttl time.Duration) (domainauth.NavIntent, bool, error)
	// Get returns the current intent, or NavIdle when none is held.
	Get(ctx context.Context, sessionID string) (domainauth.NavIntent, error)
	// Settle marks the intent settled, keeping its remaining lifetime.
	Settle(ctx context.Context, sessionID string) error
	Clear(ctx context.Context, sessionID string) error
}

// RoleMapper maps provider identity data to application roles.
type RoleMapper interface {
	Map(id domainauth.Identity) domainauth.Role
}

// ProfileRepository reads and seeds application-owned user profiles.
type ProfileRepository interface {
	// Get returns the profile for userID or a not-found error.
	Get(ctx context.Context, userID string) (domainauth.Profile, error)
	// Ensure creates the bare profile on first sign-in and returns the stored row.
	Ensure(ctx context.Context, p domainauth.Profile) (domainauth.Profile, error)
}
