package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
	"golang.org/x/sync/singleflight"
)

// attemptRetention bounds how long a completed sign-in stays claimable by a
// late WaitForAttempt call.
const attemptRetention = time.Minute

// SessionTrackerConfig tunes cache and instance behavior.
type SessionTrackerConfig struct {
	// RefreshAfter is how old a cached session may get before a read triggers
	// a background reload. Defaults to one minute.
	RefreshAfter time.Duration
	// InstanceID tags published events so an instance ignores its own echoes.
	InstanceID string
	Now        func() time.Time
}

// SessionTrackerOptions groups dependencies for SessionTracker.
type SessionTrackerOptions struct {
	Store    ports.SessionStore // Required
	Bus      ports.EventBus     // Optional: cross-instance fan-out
	Profiles ports.ProfileRepository
	Logger   *slog.Logger
	Config   SessionTrackerConfig
}

type cacheEntry struct {
	sess     domainauth.Session
	loadedAt time.Time
}

type attemptRecord struct {
	sess domainauth.Session
	at   time.Time
}

// SessionTracker is the session store seen by the rest of the service: it
// caches last-known-good sessions, notifies listeners of transitions and
// relays them across instances.
type SessionTracker struct {
	store    ports.SessionStore
	bus      ports.EventBus
	profiles ports.ProfileRepository
	logger   *slog.Logger
	cfg      SessionTrackerConfig

	// unavailable is non-nil when auth could not be configured.
	unavailable error

	mu       sync.RWMutex
	cache    map[string]cacheEntry
	attempts map[string]attemptRecord

	listenersMu sync.Mutex
	listeners   map[uint64]func(domainauth.Event)
	nextID      uint64

	loads singleflight.Group
}

// NewSessionTracker constructs a SessionTracker.
func NewSessionTracker(opts SessionTrackerOptions) *SessionTracker {
	if opts.Store == nil {
		panic("service: SessionTracker requires a Store")
	}
	t := newTracker(opts.Logger, opts.Config)
	t.store = opts.Store
	t.bus = opts.Bus
	t.profiles = opts.Profiles
	return t
}

// NewUnavailableSessionTracker returns a tracker whose reads all fail with
// ErrAuthUnavailable. reason is logged and kept for diagnostics.
func NewUnavailableSessionTracker(reason error, logger *slog.Logger) *SessionTracker {
	t := newTracker(logger, SessionTrackerConfig{})
	if reason == nil {
		reason = errors.New("identity provider not configured")
	}
	t.unavailable = reason
	t.logger.Warn("authentication unavailable", "reason", reason)
	return t
}

func newTracker(logger *slog.Logger, cfg SessionTrackerConfig) *SessionTracker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RefreshAfter <= 0 {
		cfg.RefreshAfter = time.Minute
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionTracker{
		logger:    logger.With("component", "session_tracker"),
		cfg:       cfg,
		cache:     make(map[string]cacheEntry),
		attempts:  make(map[string]attemptRecord),
		listeners: make(map[uint64]func(domainauth.Event)),
	}
}

// Available reports whether sessions can be read at all.
func (t *SessionTracker) Available() bool { return t.unavailable == nil }

// UnavailableReason returns why the tracker is unavailable, or nil.
func (t *SessionTracker) UnavailableReason() error { return t.unavailable }

// Get returns the session for id. A cached value is always returned when
// present and unexpired; stale entries trigger one background reload.
func (t *SessionTracker) Get(ctx context.Context, id string) (*domainauth.Session, error) {
	if t.unavailable != nil {
		return nil, ErrAuthUnavailable
	}
	if id == "" {
		return nil, domainauth.ErrNoIdentity
	}

	now := t.cfg.Now()
	t.mu.RLock()
	entry, ok := t.cache[id]
	t.mu.RUnlock()

	if ok {
		if entry.sess.Expired(now) {
			t.evict(id)
			return nil, errSessionExpired
		}
		if now.Sub(entry.loadedAt) >= t.cfg.RefreshAfter {
			go t.reloadDetached(id)
		}
		s := entry.sess
		return &s, nil
	}

	sess, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// load reads id from the store, coalescing concurrent reads of the same id.
func (t *SessionTracker) load(ctx context.Context, id string) (domainauth.Session, error) {
	v, err, _ := t.loads.Do("load:"+id, func() (any, error) {
		sess, err := t.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				t.evict(id)
				return nil, domainauth.ErrNoIdentity
			}
			return nil, fmt.Errorf("get session: %w", err)
		}
		if sess.Expired(t.cfg.Now()) {
			if delErr := t.store.Delete(ctx, id); delErr != nil {
				return nil, errors.Join(errSessionExpired, fmt.Errorf("delete session: %w", delErr))
			}
			return nil, errSessionExpired
		}
		t.remember(sess)
		return sess, nil
	})
	if err != nil {
		return domainauth.Session{}, err
	}
	return v.(domainauth.Session), nil
}

func (t *SessionTracker) reloadDetached(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := t.load(ctx, id); err != nil && !errors.Is(err, domainauth.ErrNoIdentity) {
		// keep serving the cached value
		t.logger.Debug("background session reload failed", "error", err)
	}
}

// SignIn persists a freshly authenticated session and announces it.
// attemptID ties the event to the login attempt that produced it.
func (t *SessionTracker) SignIn(ctx context.Context, sess domainauth.Session, attemptID string) error {
	if t.unavailable != nil {
		return ErrAuthUnavailable
	}
	if err := t.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	t.remember(sess)
	t.emit(ctx, domainauth.Event{Type: domainauth.EventSignedIn, SessionID: sess.ID, AttemptID: attemptID, Session: &sess})
	return nil
}

// Refresh reloads the profile linkage into the session and announces it.
func (t *SessionTracker) Refresh(ctx context.Context, id string) (*domainauth.Session, error) {
	cur, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.profiles == nil {
		return cur, nil
	}

	v, err, _ := t.loads.Do("refresh:"+id, func() (any, error) {
		p, perr := t.profiles.Get(ctx, cur.UserID)
		if perr != nil {
			return nil, fmt.Errorf("load profile: %w", perr)
		}
		next := cur.WithProfile(p)
		if saveErr := t.store.Save(ctx, next); saveErr != nil {
			return nil, fmt.Errorf("save session: %w", saveErr)
		}
		t.remember(next)
		t.emit(ctx, domainauth.Event{Type: domainauth.EventRefreshed, SessionID: id, Session: &next})
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s := v.(domainauth.Session)
	return &s, nil
}

// SignOut deletes the session and announces it. Missing sessions are not an error.
func (t *SessionTracker) SignOut(ctx context.Context, id string) error {
	if t.unavailable != nil {
		return ErrAuthUnavailable
	}
	if id == "" {
		return nil
	}
	t.evict(id)
	if err := t.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	t.emit(ctx, domainauth.Event{Type: domainauth.EventSignedOut, SessionID: id})
	return nil
}

// Subscribe registers fn for every session transition and returns a function
// that removes it. Listeners run synchronously on the emitting goroutine and
// must be idempotent and quick; delivery order between listeners is unspecified.
func (t *SessionTracker) Subscribe(fn func(domainauth.Event)) (unsubscribe func()) {
	t.listenersMu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.listenersMu.Lock()
			delete(t.listeners, id)
			t.listenersMu.Unlock()
		})
	}
}

// WaitForAttempt blocks until the sign-in for attemptID completes on any
// instance, the timeout elapses (ErrIdentityTimeout) or ctx is done.
func (t *SessionTracker) WaitForAttempt(ctx context.Context, attemptID string, timeout time.Duration) (*domainauth.Session, error) {
	if t.unavailable != nil {
		return nil, ErrAuthUnavailable
	}
	if attemptID == "" {
		return nil, ErrIdentityTimeout
	}

	done := make(chan domainauth.Session, 1)
	unsubscribe := t.Subscribe(func(ev domainauth.Event) {
		if ev.Type != domainauth.EventSignedIn || ev.AttemptID != attemptID || ev.Session == nil {
			return
		}
		select {
		case done <- *ev.Session:
		default:
		}
	})
	defer unsubscribe()

	// the sign-in may have landed before we subscribed
	if s, ok := t.completedAttempt(attemptID); ok {
		return &s, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-done:
		return &s, nil
	case <-timer.C:
		return nil, ErrIdentityTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run relays events from the bus to local listeners until ctx is done.
func (t *SessionTracker) Run(ctx context.Context) error {
	if t.unavailable != nil || t.bus == nil {
		<-ctx.Done()
		return nil
	}
	t.logger.InfoContext(ctx, "subscribing to session events", "instance_id", t.cfg.InstanceID)
	return t.bus.Subscribe(ctx, t.handleRemote)
}

func (t *SessionTracker) handleRemote(ev domainauth.Event) {
	if ev.Origin == t.cfg.InstanceID {
		return
	}
	switch ev.Type {
	case domainauth.EventSignedIn, domainauth.EventRefreshed:
		if ev.Session != nil {
			t.remember(*ev.Session)
			if ev.Type == domainauth.EventSignedIn && ev.AttemptID != "" {
				t.recordAttempt(ev.AttemptID, *ev.Session)
			}
		}
	case domainauth.EventSignedOut:
		t.evict(ev.SessionID)
	}
	t.notify(ev)
}

func (t *SessionTracker) emit(ctx context.Context, ev domainauth.Event) {
	ev.Origin = t.cfg.InstanceID
	if ev.Type == domainauth.EventSignedIn && ev.AttemptID != "" && ev.Session != nil {
		t.recordAttempt(ev.AttemptID, *ev.Session)
	}
	t.notify(ev)
	if t.bus == nil {
		return
	}
	if err := t.bus.Publish(ctx, ev); err != nil {
		t.logger.WarnContext(ctx, "publish session event failed", "error", err, "type", ev.Type)
	}
}

func (t *SessionTracker) notify(ev domainauth.Event) {
	t.listenersMu.Lock()
	fns := make([]func(domainauth.Event), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (t *SessionTracker) remember(sess domainauth.Session) {
	t.mu.Lock()
	t.cache[sess.ID] = cacheEntry{sess: sess, loadedAt: t.cfg.Now()}
	t.mu.Unlock()
}

func (t *SessionTracker) evict(id string) {
	t.mu.Lock()
	delete(t.cache, id)
	t.mu.Unlock()
}

func (t *SessionTracker) recordAttempt(attemptID string, sess domainauth.Session) {
	now := t.cfg.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, rec := range t.attempts {
		if now.Sub(rec.at) > attemptRetention {
			delete(t.attempts, k)
		}
	}
	t.attempts[attemptID] = attemptRecord{sess: sess, at: now}
}

func (t *SessionTracker) completedAttempt(attemptID string) (domainauth.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.attempts[attemptID]
	if !ok || t.cfg.Now().Sub(rec.at) > attemptRetention {
		return domainauth.Session{}, false
	}
	return rec.sess, true
}
