package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
	"github.com/redis/go-redis/v9"
)

var _ ports.NavIntentStore = (*NavIntentStore)(nil)

// NavIntentStore keeps one navigation intent per session. Claim uses SET NX so
// the first writer across all instances owns the redirect decision.
type NavIntentStore struct {
	client redis.UniversalClient
	prefix string
}

// NewNavIntentStore creates a nav intent store using the "navintent:" prefix.
func NewNavIntentStore(client redis.UniversalClient) *NavIntentStore {
	return &NavIntentStore{client: client, prefix: "navintent:"}
}

func (s *NavIntentStore) key(sessionID string) string { return s.prefix + sessionID }

func (s *NavIntentStore) Claim(
	ctx context.Context,
	sessionID string,
	intent domainauth.NavIntent,
	ttl time.Duration,
) (domainauth.NavIntent, bool, error) {
	if sessionID == "" {
		return domainauth.NavIntent{}, false, errors.New("session ID cannot be empty")
	}
	if ttl <= 0 {
		return domainauth.NavIntent{}, false, errors.New("nav intent ttl must be positive")
	}
	if intent.SetAt.IsZero() {
		intent.SetAt = time.Now()
	}
	intent.ExpiresAt = intent.SetAt.Add(ttl)

	data, err := json.Marshal(intent)
	if err != nil {
		return domainauth.NavIntent{}, false, fmt.Errorf("marshal nav intent: %w", err)
	}

	err = s.client.SetArgs(ctx, s.key(sessionID), data, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	switch {
	case err == nil:
		return intent, true, nil
	case errors.Is(err, redis.Nil):
		// lost the race; report the holder
		cur, getErr := s.Get(ctx, sessionID)
		if getErr != nil {
			return domainauth.NavIntent{}, false, getErr
		}
		if cur.State == domainauth.NavIdle {
			// holder expired between SET and GET; the next navigation will claim it
			return intent, false, nil
		}
		return cur, false, nil
	default:
		return domainauth.NavIntent{}, false, fmt.Errorf("redis set nx: %w", err)
	}
}

func (s *NavIntentStore) Get(ctx context.Context, sessionID string) (domainauth.NavIntent, error) {
	idle := domainauth.NavIntent{State: domainauth.NavIdle}
	if sessionID == "" {
		return idle, nil
	}
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return idle, nil
		}
		return domainauth.NavIntent{}, fmt.Errorf("redis get: %w", err)
	}
	var intent domainauth.NavIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return domainauth.NavIntent{}, fmt.Errorf("unmarshal nav intent: %w", err)
	}
	return intent, nil
}

// Settle flips a held intent to settled without extending its lifetime.
func (s *NavIntentStore) Settle(ctx context.Context, sessionID string) error {
	cur, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if cur.State != domainauth.NavNavigating {
		return nil
	}
	cur.State = domainauth.NavSettled
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshal nav intent: %w", err)
	}
	err = s.client.SetArgs(ctx, s.key(sessionID), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis set xx: %w", err)
	}
	return nil
}

func (s *NavIntentStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(sessionID)).Err()
}
