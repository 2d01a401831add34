package accesstoken

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	mocks "github.com/pdsapp/pds/internal/mocks/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-bytes-1234"

func signed(t *testing.T, ttl time.Duration, c Claims) string {
	t.Helper()
	tok, err := Sign(testSecret, "pds", ttl, c)
	require.NoError(t, err)
	return tok
}

func TestVerifier_ValidToken(t *testing.T) {
	v := New(Config{Secret: testSecret, Issuer: "pds"})
	tok := signed(t, time.Hour, Claims{
		Email:            "teach@example.com",
		GivenName:        "Tia",
		Groups:           []string{"pds-teachers"},
		Role:             "teacher",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "teacher-1"},
	})

	id, err := v.VerifyAccessToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", id.UserID)
	assert.Equal(t, "teach@example.com", id.Email)
	assert.Equal(t, "teacher", id.Claims["pds_role"])
	assert.Equal(t, []any{"pds-teachers"}, id.Claims["groups"])
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, 5*time.Second)
}

func TestVerifier_Rejects(t *testing.T) {
	v := New(Config{Secret: testSecret, Issuer: "pds"})

	expired := signed(t, -time.Minute, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}})
	_, err := v.VerifyAccessToken(context.Background(), expired)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	other, err := Sign("some-other-secret", "pds", time.Hour, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}})
	require.NoError(t, err)
	_, err = v.VerifyAccessToken(context.Background(), other)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	noSub := signed(t, time.Hour, Claims{Email: "x@example.com"})
	_, err = v.VerifyAccessToken(context.Background(), noSub)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)

	_, err = v.VerifyAccessToken(context.Background(), "")
	require.Error(t, err)
}

func TestVerifier_OpaqueTokenUsesFallback(t *testing.T) {
	fallback := mocks.NewMockAuthProvider()
	fallback.VerifyFunc = func(_ context.Context, token string) (domainauth.Identity, error) {
		return domainauth.Identity{UserID: "from-idp:" + token}, nil
	}
	v := New(Config{Secret: testSecret, Fallback: fallback})

	id, err := v.VerifyAccessToken(context.Background(), "opaque")
	require.NoError(t, err)
	assert.Equal(t, "from-idp:opaque", id.UserID)
}

func TestVerifier_NoSecret(t *testing.T) {
	_, err := New(Config{}).VerifyAccessToken(context.Background(), "anything")
	require.ErrorIs(t, err, ErrNoVerifier)

	fallback := mocks.NewMockAuthProvider()
	id, err := New(Config{Fallback: fallback}).VerifyAccessToken(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", id.UserID)
}
