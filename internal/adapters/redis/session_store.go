// Package redis holds the Redis-backed session, navigation-intent and event
// adapters.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
	"github.com/redis/go-redis/v9"
)

var _ ports.SessionStore = (*SessionStore)(nil)

// ErrNotFound is returned for missing or expired sessions.
var ErrNotFound = fmt.Errorf("session %w", ports.ErrNotFound)

// DefaultSessionPrefix namespaces session keys.
const DefaultSessionPrefix = "session:"

// SessionStore keeps each session as JSON under <prefix><id>, expiring with
// the session. A set under <prefix>by-user:<user id> indexes a user's
// sessions for bulk revocation.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionStore uses DefaultSessionPrefix.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, DefaultSessionPrefix)
}

// NewSessionStoreWithPrefix namespaces keys under prefix; empty means the default.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *SessionStore) sessionKey(id string) string  { return s.prefix + id }
func (s *SessionStore) userKey(userID string) string { return s.prefix + "by-user:" + userID }

// Save writes the session with a TTL matching its expiry. Expired sessions
// are rejected.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), data, ttl)
		if sess.UserID != "" {
			// Sessions share one lifetime, so the newest save outlives the
			// rest. Not MULTI: in cluster mode the keys may hash to different slots.
			pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
			pipe.Expire(ctx, s.userKey(sess.UserID), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// Get returns ErrNotFound for unknown or expired sessions.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}
	sess, err := s.load(ctx, id)
	if err != nil {
		return domainauth.Session{}, err
	}
	if sess.Expired(s.now()) {
		if err := s.remove(ctx, sess); err != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", err)
		}
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes the session and its index entry. Unknown ids are a no-op.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	sess, err := s.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		// unreadable payloads still get deleted
		sess = domainauth.Session{ID: id}
	}
	return s.remove(ctx, sess)
}

// SessionIDsForUser lists the user's live session ids, sorted. Index entries
// whose session has expired are pruned.
func (s *SessionStore) SessionIDsForUser(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list user sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	exists := make([]*redis.IntCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = pipe.Exists(ctx, s.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis check user sessions: %w", err)
	}

	live := make([]string, 0, len(ids))
	var stale []any
	for i, id := range ids {
		if exists[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("redis prune user sessions: %w", err)
		}
	}
	slices.Sort(live)
	return live, nil
}

func (s *SessionStore) load(ctx context.Context, id string) (domainauth.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domainauth.Session{}, ErrNotFound
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("redis get session: %w", err)
	}
	var sess domainauth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) remove(ctx context.Context, sess domainauth.Session) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sess.ID))
		if sess.UserID != "" {
			pipe.SRem(ctx, s.userKey(sess.UserID), sess.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
