package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	authmocks "github.com/pdsapp/pds/internal/mocks/auth"
	"github.com/pdsapp/pds/internal/service"
	"github.com/stretchr/testify/require"
)

type testStack struct {
	handler  http.Handler
	provider *authmocks.MockAuthProvider
	profiles *authmocks.MemoryProfileRepository
	intents  *authmocks.MemoryNavIntentStore
	tracker  *service.SessionTracker
	auth     *service.AuthService
	nav      *service.Navigator
}

func newTestStack(t *testing.T, role domainauth.Role, seed ...domainauth.Profile) *testStack {
	t.Helper()
	provider := authmocks.NewMockAuthProvider()
	profiles := authmocks.NewMemoryProfileRepository(seed...)
	intents := authmocks.NewMemoryNavIntentStore()
	tracker := service.NewSessionTracker(service.SessionTrackerOptions{
		Store:    authmocks.NewMemorySessionStore(),
		Profiles: profiles,
	})
	auth := service.NewAuthService(service.AuthServiceOptions{
		Provider: provider,
		Tokens:   provider,
		Sessions: tracker,
		Roles:    authmocks.StaticRoleMapper{Role: role},
		Profiles: profiles,
	})
	nav := service.NewNavigator(service.NavigatorOptions{Intents: intents})
	callbacks := service.NewCallbackService(service.CallbackServiceOptions{
		Auth:      auth,
		Navigator: nav,
		Config:    service.CallbackConfig{WaitTimeout: 30 * time.Millisecond},
	})
	pages, err := NewPages(nil, nil)
	require.NoError(t, err)

	return &testStack{
		handler: NewRouter(RouterServices{
			Auth:      auth,
			Callbacks: callbacks,
			Navigator: nav,
			Pages:     pages,
		}),
		provider: provider,
		profiles: profiles,
		intents:  intents,
		tracker:  tracker,
		auth:     auth,
		nav:      nav,
	}
}

// signIn stores a session directly and returns it.
func (s *testStack) signIn(t *testing.T, sess domainauth.Session) domainauth.Session {
	t.Helper()
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = time.Now().Add(time.Hour)
	}
	require.NoError(t, s.tracker.SignIn(context.Background(), sess, ""))
	return sess
}

func (s *testStack) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func browserRequest(method, target string, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func jsonRequest(method, target string, cookies ...*http.Cookie) *http.Request {
	r := browserRequest(method, target, cookies...)
	r.Header.Set("Accept", "application/json")
	return r
}

func loginCookiesFor(state string) []*http.Cookie {
	return []*http.Cookie{
		{Name: cookieState, Value: state},
		{Name: cookieNonce, Value: "nonce-1"},
		{Name: cookieVerifier, Value: "verifier-1"},
	}
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sessionCookie(id string) *http.Cookie { return &http.Cookie{Name: cookieSession, Value: id} }

const testCSRFToken = "csrf-test-token"

func csrfCookie() *http.Cookie { return &http.Cookie{Name: cookieCSRF, Value: testCSRFToken} }

// withCSRF attaches a matching double-submit cookie and header.
func withCSRF(r *http.Request) *http.Request {
	r.AddCookie(csrfCookie())
	r.Header.Set(headerCSRF, testCSRFToken)
	return r
}

func linkedParentProfile(userID string) domainauth.Profile {
	return domainauth.Profile{
		UserID:   userID,
		Role:     domainauth.RoleParent,
		SchoolID: "sch-1",
		Children: []domainauth.ChildRef{{ID: "c1", Name: "Ada"}},
	}
}
