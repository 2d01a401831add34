package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
	"golang.org/x/sync/singleflight"
)

// defaultSessionTTL applies when the identity provider reports no expiry.
const defaultSessionTTL = 8 * time.Hour

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider
	Tokens   ports.AccessTokenVerifier // Optional: implicit-flow entry point
	Sessions *SessionTracker
	Roles    ports.RoleMapper
	Profiles ports.ProfileRepository // Optional: school linkage
	Logger   *slog.Logger
}

// AuthService orchestrates authentication flows by coordinating provider, role mapping, and session persistence.
type AuthService struct {
	provider ports.AuthProvider
	tokens   ports.AccessTokenVerifier
	sessions *SessionTracker
	roles    ports.RoleMapper
	profiles ports.ProfileRepository
	logger   *slog.Logger

	exchanges singleflight.Group
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		provider: opts.Provider,
		tokens:   opts.Tokens,
		sessions: opts.Sessions,
		roles:    opts.Roles,
		profiles: opts.Profiles,
		logger:   logger.With("component", "auth_service"),
	}
}

// Sessions exposes the session tracker backing the service.
func (s *AuthService) Sessions() *SessionTracker { return s.sessions }

// Available reports whether sign-in is configured.
func (s *AuthService) Available() bool { return s.sessions.Available() }

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL  string
	State    string
	Nonce    string
	Verifier string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL
// with the state, nonce and PKCE verifier the callback must present.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if !s.sessions.Available() {
		return nil, ErrAuthUnavailable
	}
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	out, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL:  out.AuthURL,
		State:    out.State,
		Nonce:    out.Nonce,
		Verifier: out.Verifier,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code     string
	State    string
	Nonce    string
	Verifier string
}

// CompleteLogin exchanges the code for an identity and establishes a session.
// Concurrent calls for the same code share one exchange.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*domainauth.Session, error) {
	if !s.sessions.Available() {
		return nil, ErrAuthUnavailable
	}
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}

	v, err, _ := s.exchanges.Do(input.Code, func() (any, error) {
		identity, exErr := s.provider.Exchange(ctx, ports.ExchangeInput{
			Code:     input.Code,
			State:    input.State,
			Nonce:    input.Nonce,
			Verifier: input.Verifier,
		})
		if exErr != nil {
			return nil, providerRejected(fmt.Errorf("exchange authorization code: %w", exErr))
		}
		return s.establish(ctx, identity, input.State)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domainauth.Session), nil
}

// CompleteWithAccessToken verifies an implicit-flow access token and
// establishes a session. attemptID is the login attempt it belongs to.
func (s *AuthService) CompleteWithAccessToken(ctx context.Context, token, attemptID string) (*domainauth.Session, error) {
	if !s.sessions.Available() {
		return nil, ErrAuthUnavailable
	}
	if token == "" {
		return nil, errors.New("access token is required")
	}
	if s.tokens == nil {
		return nil, errors.New("access token sign-in is not enabled")
	}

	identity, err := s.tokens.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, providerRejected(fmt.Errorf("verify access token: %w", err))
	}
	return s.establish(ctx, identity, attemptID)
}

// establish maps the identity onto a new session, seeds the profile and
// announces the sign-in.
func (s *AuthService) establish(ctx context.Context, identity domainauth.Identity, attemptID string) (*domainauth.Session, error) {
	if identity.UserID == "" {
		return nil, errors.New("identity has no user id")
	}

	role := s.roles.Map(identity)
	session := domainauth.Session{
		ID:        generateSessionID(),
		UserID:    identity.UserID,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     identity.Email,
		Role:      role,
		ExpiresAt: identity.ExpiresAt,
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = time.Now().Add(defaultSessionTTL)
	}

	if s.profiles != nil {
		profile, err := s.profiles.Ensure(ctx, domainauth.Profile{
			UserID: identity.UserID,
			Email:  identity.Email,
			Role:   role,
		})
		if err != nil {
			return nil, fmt.Errorf("ensure profile: %w", err)
		}
		session = session.WithProfile(profile)
	}

	if err := s.sessions.SignIn(ctx, session, attemptID); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "session established",
		"user_id", session.UserID,
		"role", session.Role,
		"needs_onboarding", domainauth.NeedsOnboarding(&session))
	return &session, nil
}

// GetSession retrieves a live session by ID.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" && s.sessions.Available() {
		return nil, errors.New("session ID is required")
	}
	return s.sessions.Get(ctx, sessionID)
}

// RefreshSession reloads profile linkage into the session.
func (s *AuthService) RefreshSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}
	return s.sessions.Refresh(ctx, sessionID)
}

// WaitForIdentity blocks until the attempt signs in, the timeout elapses or ctx is done.
func (s *AuthService) WaitForIdentity(ctx context.Context, attemptID string, timeout time.Duration) (*domainauth.Session, error) {
	return s.sessions.WaitForAttempt(ctx, attemptID, timeout)
}

// Logout removes a session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil // Nothing to logout
	}
	return s.sessions.SignOut(ctx, sessionID)
}

// generateSessionID creates a cryptographically secure random session ID.
func generateSessionID() string {
	return uuid.New().String()
}
