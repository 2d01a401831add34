package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuthBrowser(t *testing.T) {
	s := newTestStack(t, domainauth.RoleTeacher)
	s.signIn(t, domainauth.Session{ID: "s1", UserID: "u1", Role: domainauth.RoleTeacher})

	t.Run("api request gets 401", func(t *testing.T) {
		w := s.do(jsonRequest(http.MethodGet, "/teacher"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	})

	t.Run("browser is sent to login with the deep link", func(t *testing.T) {
		w := s.do(browserRequest(http.MethodGet, "/teacher?week=3"))
		require.Equal(t, http.StatusSeeOther, w.Code)

		u, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, domainauth.LoginRoute, u.Path)
		assert.Equal(t, "/teacher?week=3", u.Query().Get("redirect_uri"))
	})

	t.Run("signed in", func(t *testing.T) {
		w := s.do(browserRequest(http.MethodGet, "/teacher", sessionCookie("s1")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Teacher dashboard")
	})
}

func TestRequireRoleBrowser(t *testing.T) {
	s := newTestStack(t, domainauth.RoleTeacher)
	s.signIn(t, domainauth.Session{ID: "s1", UserID: "u1", Role: domainauth.RoleTeacher})

	w := s.do(browserRequest(http.MethodGet, "/admin", sessionCookie("s1")))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(jsonRequest(http.MethodGet, "/admin", sessionCookie("s1")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient_permissions")
}

func TestHome(t *testing.T) {
	s := newTestStack(t, domainauth.RoleTeacher)
	s.signIn(t, domainauth.Session{ID: "t", UserID: "u1", Role: domainauth.RoleTeacher})
	s.signIn(t, domainauth.Session{ID: "g", UserID: "u2", Role: domainauth.RoleGuest})

	w := s.do(browserRequest(http.MethodGet, "/"))
	assert.Equal(t, domainauth.LoginRoute, w.Header().Get("Location"))

	w = s.do(browserRequest(http.MethodGet, "/", sessionCookie("t")))
	assert.Equal(t, "/teacher", w.Header().Get("Location"))

	w = s.do(browserRequest(http.MethodGet, "/", sessionCookie("g")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not been assigned a role")
}

func TestIsBrowserRequest(t *testing.T) {
	cases := []struct {
		path, accept string
		want         bool
	}{
		{"/teacher", "", true},
		{"/teacher", "text/html,application/xhtml+xml", true},
		{"/teacher", "application/json", false},
		{"/teacher", "*/*", true},
		{"/api/anything", "text/html", false},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, c.path, nil)
		if c.accept != "" {
			r.Header.Set("Accept", c.accept)
		}
		assert.Equal(t, c.want, isBrowserRequest(r), "%s %q", c.path, c.accept)
	}
}

func TestSafeRedirectPath(t *testing.T) {
	assert.Equal(t, "/", safeRedirectPath(""))
	assert.Equal(t, "/parent?x=1", safeRedirectPath("/parent?x=1"))
	assert.Equal(t, "/", safeRedirectPath("https://evil.example.com"))
	assert.Equal(t, "/", safeRedirectPath("//evil.example.com"))
	assert.Equal(t, "/", safeRedirectPath("relative/path"))
}

