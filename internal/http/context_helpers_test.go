package httpx

import (
	"context"
	"testing"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/stretchr/testify/assert"
)

func TestSessionContext(t *testing.T) {
	ctx := context.Background()

	_, ok := SessionFrom(ctx)
	assert.False(t, ok)
	assert.Nil(t, CurrentSession(ctx))
	assert.Equal(t, domainauth.RoleGuest, CurrentRole(ctx))
	assert.Equal(t, ctx, WithSession(ctx, nil))

	sess := &domainauth.Session{ID: "abc", Role: domainauth.RoleParent}
	ctx = WithSession(ctx, sess)
	got, ok := SessionFrom(ctx)
	assert.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, domainauth.RoleParent, CurrentRole(ctx))
}

func TestCSRFTokenContext(t *testing.T) {
	assert.Empty(t, CSRFToken(context.Background()))
	assert.Equal(t, "tok", CSRFToken(withCSRFToken(context.Background(), "tok")))
}
