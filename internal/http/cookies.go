package httpx

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
)

// Cookie names.
const (
	cookieSession       = "session_id"
	cookieUser          = "user"
	cookieState         = "oauth_state"
	cookieNonce         = "oauth_nonce"
	cookieVerifier      = "oauth_verifier"
	cookieSignup        = "signup"
	cookiePostLoginPath = "post_login_redirect"

	loginCookieMaxAge = 600 // 10 minutes
)

var loginCookies = []string{cookieState, cookieNonce, cookieVerifier, cookieSignup, cookiePostLoginPath}

// userSnapshot is the last known identity kept client-side in the user cookie.
type userSnapshot struct {
	ID    string          `json:"id"`
	Email string          `json:"email"`
	Role  domainauth.Role `json:"role"`
}

func snapshotOf(s *domainauth.Session) *userSnapshot {
	if s == nil {
		return nil
	}
	return &userSnapshot{ID: s.UserID, Email: s.Email, Role: s.Role}
}

func encodeSnapshot(u userSnapshot) string {
	b, err := json.Marshal(u)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeSnapshot(raw string) (userSnapshot, bool) {
	var u userSnapshot
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return u, false
	}
	if err := json.Unmarshal(b, &u); err != nil || u.ID == "" {
		return u, false
	}
	return u, true
}

// cookieJar writes cookies with shared attributes.
type cookieJar struct {
	domain string
}

// isSecureRequest also honours proxies that append to X-Forwarded-Proto.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

func (j cookieJar) set(w http.ResponseWriter, r *http.Request, c *http.Cookie) {
	c.Path = "/"
	c.Domain = j.domain
	c.Secure = isSecureRequest(r)
	c.SameSite = http.SameSiteLaxMode
	http.SetCookie(w, c)
}

// setLogin stores the short-lived values the callback needs.
func (j cookieJar) setLogin(w http.ResponseWriter, r *http.Request, values map[string]string) {
	for name, v := range values {
		if v == "" {
			continue
		}
		j.set(w, r, &http.Cookie{Name: name, Value: v, HttpOnly: true, MaxAge: loginCookieMaxAge})
	}
}

// setSession writes the session cookie and the readable identity snapshot.
func (j cookieJar) setSession(w http.ResponseWriter, r *http.Request, s *domainauth.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	j.set(w, r, &http.Cookie{Name: cookieSession, Value: s.ID, HttpOnly: true, MaxAge: maxAge})
	j.set(w, r, &http.Cookie{Name: cookieUser, Value: encodeSnapshot(*snapshotOf(s)), MaxAge: maxAge})
}

// clear expires a cookie, mirroring the attributes used when setting it.
func (j cookieJar) clear(w http.ResponseWriter, r *http.Request, names ...string) {
	for _, name := range names {
		j.set(w, r, &http.Cookie{
			Name:     name,
			Value:    "",
			HttpOnly: name != cookieUser,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0).UTC(),
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
