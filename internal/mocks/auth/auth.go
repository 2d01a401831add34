package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider        = (*MockAuthProvider)(nil)
	_ ports.AccessTokenVerifier = (*MockAuthProvider)(nil)
	_ ports.SessionStore        = (*MemorySessionStore)(nil)
	_ ports.EventBus            = (*MemoryEventBus)(nil)
	_ ports.NavIntentStore      = (*MemoryNavIntentStore)(nil)
	_ ports.ProfileRepository   = (*MemoryProfileRepository)(nil)
	_ ports.RoleMapper          = (*StaticRoleMapper)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (ports.BeginOutput, error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)
	VerifyFunc   func(ctx context.Context, token string) (domainauth.Identity, error)

	// Deterministic values for predictable testing
	AuthURL     string
	DefaultUser domainauth.Identity

	beginCalls    atomic.Int32
	exchangeCalls atomic.Int32
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL: "https://mock-idp/auth",
		DefaultUser: domainauth.Identity{
			UserID:    "mock-user-1",
			FirstName: "Mock",
			LastName:  "Parent",
			Email:     "mock.parent@example.com",
			Groups:    []string{"parents"},
		},
	}
}

// ExchangeCalls reports how many times Exchange was invoked.
func (m *MockAuthProvider) ExchangeCalls() int { return int(m.exchangeCalls.Load()) }

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (ports.BeginOutput, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	n := m.beginCalls.Add(1)
	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	return ports.BeginOutput{
		AuthURL:  authURL,
		State:    fmt.Sprintf("state-%d", n),
		Nonce:    fmt.Sprintf("nonce-%d", n),
		Verifier: fmt.Sprintf("verifier-%d", n),
	}, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	m.exchangeCalls.Add(1)
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return m.defaultIdentity(), nil
}

func (m *MockAuthProvider) VerifyAccessToken(ctx context.Context, token string) (domainauth.Identity, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token)
	}
	if token == "" {
		return domainauth.Identity{}, errors.New("access token is required")
	}
	return m.defaultIdentity(), nil
}

func (m *MockAuthProvider) defaultIdentity() domainauth.Identity {
	// Return a copy of the default user with a fresh expiration time
	user := m.DefaultUser
	if user.UserID == "" {
		user = domainauth.Identity{UserID: "mock-user-1", Email: "mock.parent@example.com"}
	}
	user.ExpiresAt = time.Now().Add(time.Hour)
	return user
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	gets     int
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

// Gets reports how many Get calls reached the store.
func (m *MemorySessionStore) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// MemoryEventBus records published events and replays them to subscribers.
type MemoryEventBus struct {
	mu        sync.Mutex
	published []domainauth.Event
	subs      []func(domainauth.Event)
}

func (b *MemoryEventBus) Publish(_ context.Context, ev domainauth.Event) error {
	b.mu.Lock()
	b.published = append(b.published, ev)
	subs := append([]func(domainauth.Event){}, b.subs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (b *MemoryEventBus) Subscribe(ctx context.Context, fn func(domainauth.Event)) error {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
	<-ctx.Done()
	return nil
}

// Published returns a copy of all published events.
func (b *MemoryEventBus) Published() []domainauth.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domainauth.Event(nil), b.published...)
}

// MemoryNavIntentStore keeps intents in memory with an injectable clock.
type MemoryNavIntentStore struct {
	mu      sync.Mutex
	intents map[string]domainauth.NavIntent
	Now     func() time.Time
}

// NewMemoryNavIntentStore creates an empty intent store using time.Now.
func NewMemoryNavIntentStore() *MemoryNavIntentStore {
	return &MemoryNavIntentStore{intents: make(map[string]domainauth.NavIntent), Now: time.Now}
}

func (m *MemoryNavIntentStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// live returns the stored intent when it has not expired. Caller holds mu.
func (m *MemoryNavIntentStore) live(id string) (domainauth.NavIntent, bool) {
	in, ok := m.intents[id]
	if !ok {
		return domainauth.NavIntent{}, false
	}
	if !m.now().Before(in.ExpiresAt) {
		delete(m.intents, id)
		return domainauth.NavIntent{}, false
	}
	return in, true
}

func (m *MemoryNavIntentStore) Claim(
	_ context.Context,
	sessionID string,
	intent domainauth.NavIntent,
	ttl time.Duration,
) (domainauth.NavIntent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.live(sessionID); ok {
		return cur, false, nil
	}
	intent.ExpiresAt = intent.SetAt.Add(ttl)
	m.intents[sessionID] = intent
	return intent, true, nil
}

func (m *MemoryNavIntentStore) Get(_ context.Context, sessionID string) (domainauth.NavIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.live(sessionID); ok {
		return cur, nil
	}
	return domainauth.NavIntent{State: domainauth.NavIdle}, nil
}

func (m *MemoryNavIntentStore) Settle(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.live(sessionID); ok {
		cur.State = domainauth.NavSettled
		m.intents[sessionID] = cur
	}
	return nil
}

func (m *MemoryNavIntentStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.intents, sessionID)
	return nil
}

// MemoryProfileRepository is a map-backed profile repository.
type MemoryProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]domainauth.Profile
}

// NewMemoryProfileRepository seeds a repository with the given profiles.
func NewMemoryProfileRepository(seed ...domainauth.Profile) *MemoryProfileRepository {
	r := &MemoryProfileRepository{profiles: make(map[string]domainauth.Profile)}
	for _, p := range seed {
		r.profiles[p.UserID] = p
	}
	return r
}

// Put replaces a stored profile.
func (r *MemoryProfileRepository) Put(p domainauth.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = p
}

func (r *MemoryProfileRepository) Get(_ context.Context, userID string) (domainauth.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return domainauth.Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryProfileRepository) Ensure(_ context.Context, p domainauth.Profile) (domainauth.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.profiles[p.UserID]; ok {
		return cur, nil
	}
	r.profiles[p.UserID] = p
	return p, nil
}

// ErrNotFound is returned by mocks when an entity is not present.
type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

func (notFoundError) Is(target error) bool { return target == ports.ErrNotFound }

var ErrNotFound error = notFoundError{}

// StaticRoleMapper returns Role for every identity.
type StaticRoleMapper struct {
	Role domainauth.Role
}

func (m StaticRoleMapper) Map(_ domainauth.Identity) domainauth.Role {
	if m.Role == "" {
		return domainauth.RoleGuest
	}
	return m.Role
}
