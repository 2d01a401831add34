package httpx

import (
	"context"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
)

type (
	sessionKey   struct{}
	csrfTokenKey struct{}
)

// WithSession attaches the signed-in session; a nil session leaves ctx as is.
func WithSession(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFrom reports the session attached by the auth middleware.
func SessionFrom(ctx context.Context) (*domainauth.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*domainauth.Session)
	return session, ok && session != nil
}

// CurrentSession is SessionFrom without the presence flag.
func CurrentSession(ctx context.Context) *domainauth.Session {
	session, _ := SessionFrom(ctx)
	return session
}

// CurrentRole is the session's role, or guest when nobody is signed in.
func CurrentRole(ctx context.Context) domainauth.Role {
	if session := CurrentSession(ctx); session != nil {
		return session.Role
	}
	return domainauth.RoleGuest
}

func withCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenKey{}, token)
}

// CSRFToken returns the request's CSRF token for embedding in forms.
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenKey{}).(string)
	return token
}
