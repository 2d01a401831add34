package auth

import (
	"context"
	"testing"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAuthProvider_Begin_Defaults(t *testing.T) {
	provider := NewMockAuthProvider()
	ctx := context.Background()

	input := ports.BeginInput{RedirectURL: "http://localhost:8080/auth/callback"}
	out, err := provider.Begin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", out.AuthURL)
	assert.Equal(t, "state-1", out.State)
	assert.Equal(t, "nonce-1", out.Nonce)
	assert.Equal(t, "verifier-1", out.Verifier)

	// Second call should increment counters
	out2, err := provider.Begin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "state-2", out2.State)
}

func TestMockAuthProvider_ExchangeCountsCalls(t *testing.T) {
	provider := NewMockAuthProvider()

	id, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c"})
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", id.UserID)
	assert.True(t, id.ExpiresAt.After(time.Now()))
	assert.Equal(t, 1, provider.ExchangeCalls())
}

func TestMemoryNavIntentStore_ClaimOnce(t *testing.T) {
	now := time.Now()
	store := NewMemoryNavIntentStore()
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	first := domainauth.NavIntent{State: domainauth.NavNavigating, Destination: "/parent", SetAt: now}
	got, won, err := store.Claim(ctx, "s1", first, 500*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, "/parent", got.Destination)

	second := domainauth.NavIntent{State: domainauth.NavNavigating, Destination: "/login", SetAt: now}
	got, won, err = store.Claim(ctx, "s1", second, 500*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, "/parent", got.Destination)

	// after expiry the slot is free again
	now = now.Add(time.Second)
	cur, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.NavIdle, cur.State)
}

func TestMemoryProfileRepository_Ensure(t *testing.T) {
	repo := NewMemoryProfileRepository(domainauth.Profile{UserID: "u1", Role: domainauth.RoleTeacher})
	ctx := context.Background()

	got, err := repo.Ensure(ctx, domainauth.Profile{UserID: "u1", Role: domainauth.RoleParent})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleTeacher, got.Role, "existing profile wins")

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaticRoleMapper(t *testing.T) {
	assert.Equal(t, domainauth.RoleGuest, StaticRoleMapper{}.Map(domainauth.Identity{}))
	assert.Equal(t, domainauth.RoleAdmin, StaticRoleMapper{Role: domainauth.RoleAdmin}.Map(domainauth.Identity{}))
}
