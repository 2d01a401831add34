package service

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/observability/metrics"
	"github.com/pdsapp/pds/internal/observability/statsd"
	"github.com/pdsapp/pds/internal/ports"
)

// DefaultNavIntentTTL bounds how long a login transition owns navigation.
const DefaultNavIntentTTL = 500 * time.Millisecond

// NavigatorOptions groups dependencies for Navigator.
type NavigatorOptions struct {
	Intents ports.NavIntentStore
	TTL     time.Duration
	Metrics statsd.Sink
	Logger  *slog.Logger
	Now     func() time.Time
}

// Navigator owns the single redirect decision made after a login transition.
// The first component to claim the intent picks the destination; everyone
// else follows it.
type Navigator struct {
	intents ports.NavIntentStore
	ttl     time.Duration
	metrics statsd.Sink
	logger  *slog.Logger
	now     func() time.Time
}

// NewNavigator constructs a Navigator.
func NewNavigator(opts NavigatorOptions) *Navigator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultNavIntentTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Navigator{
		intents: opts.Intents,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "navigator"),
		now:     opts.Now,
	}
}

// TTL returns the intent lifetime.
func (n *Navigator) TTL() time.Duration { return n.ttl }

// Navigate resolves where sess should land and claims the navigation intent
// for it. When another path already holds the intent its destination wins.
func (n *Navigator) Navigate(ctx context.Context, sess *domainauth.Session, rc domainauth.RouteContext) (string, error) {
	dest, err := domainauth.ResolveDestination(sess, rc)
	if err != nil {
		return "", err
	}
	if n.intents == nil {
		return dest, nil
	}

	now := n.now()
	held, won, err := n.intents.Claim(ctx, sess.ID, domainauth.NavIntent{
		State:       domainauth.NavNavigating,
		Destination: dest,
		SetAt:       now,
	}, n.ttl)
	if err != nil {
		n.logger.WarnContext(ctx, "claim navigation intent failed", "error", err, "session_id", sess.ID)
		return dest, nil
	}
	metrics.EmitNavIntent(n.metrics, won)
	if !won && held.Destination != "" {
		n.logger.DebugContext(ctx, "navigation already claimed",
			"session_id", sess.ID, "destination", held.Destination, "resolved", dest)
		return held.Destination, nil
	}
	return dest, nil
}

// Current returns the live intent for sessionID, or an idle intent.
func (n *Navigator) Current(ctx context.Context, sessionID string) domainauth.NavIntent {
	idle := domainauth.NavIntent{State: domainauth.NavIdle}
	if n.intents == nil || sessionID == "" {
		return idle
	}
	cur, err := n.intents.Get(ctx, sessionID)
	if err != nil {
		n.logger.WarnContext(ctx, "read navigation intent failed", "error", err, "session_id", sessionID)
		return idle
	}
	return cur
}

// Active reports whether a login transition currently owns navigation.
func (n *Navigator) Active(ctx context.Context, sessionID string) bool {
	return n.Current(ctx, sessionID).Active(n.now())
}

// Settle marks the intent settled once path is the destination it points at.
// It reports whether the intent was settled.
func (n *Navigator) Settle(ctx context.Context, sessionID, path string) bool {
	cur := n.Current(ctx, sessionID)
	if !cur.Active(n.now()) || !samePath(cur.Destination, path) {
		return false
	}
	if err := n.intents.Settle(ctx, sessionID); err != nil {
		n.logger.WarnContext(ctx, "settle navigation intent failed", "error", err, "session_id", sessionID)
		return false
	}
	return true
}

// Clear drops any intent for sessionID.
func (n *Navigator) Clear(ctx context.Context, sessionID string) {
	if n.intents == nil || sessionID == "" {
		return
	}
	if err := n.intents.Clear(ctx, sessionID); err != nil {
		n.logger.WarnContext(ctx, "clear navigation intent failed", "error", err, "session_id", sessionID)
	}
}

// samePath compares the path component of a destination URL with a request path.
func samePath(dest, path string) bool {
	u, err := url.Parse(dest)
	if err != nil {
		return dest == path
	}
	return u.Path == path
}
