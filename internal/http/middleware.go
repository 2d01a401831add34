package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/service"
)

// sessionLookup resolves the request's session. A nil session with a nil
// error means the request is anonymous.
func sessionLookup(r *http.Request, authSvc SessionReader) (*domainauth.Session, error) {
	if !authSvc.Available() {
		return nil, service.ErrAuthUnavailable
	}
	c, err := r.Cookie(cookieSession)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	session, err := authSvc.GetSession(r.Context(), c.Value)
	if err != nil {
		if errors.Is(err, service.ErrAuthUnavailable) {
			return nil, err
		}
		return nil, nil
	}
	return session, nil
}

// OptionalAuth returns a middleware that optionally adds authentication information.
// If the user is authenticated, the session is added to the request context.
func OptionalAuth(authSvc SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session, _ := sessionLookup(r, authSvc); session != nil {
				r = r.WithContext(WithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection records once per request whether the caller wants HTML
// pages or JSON (the loading page's fetch calls and API clients).
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowserRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest reports the value recorded by BrowserDetection, detecting
// directly when the middleware did not run.
func IsBrowserRequest(r *http.Request) bool {
	if isBrowser, ok := r.Context().Value(browserRequestKey{}).(bool); ok {
		return isBrowser
	}
	return isBrowserRequest(r)
}

func isBrowserRequest(r *http.Request) bool {
	if r.URL.Path == "/healthz" {
		return false
	}
	accept := r.Header.Get("Accept")
	switch {
	case accept == "":
		return true
	case strings.Contains(accept, "text/html"):
		return true
	case strings.Contains(accept, "application/json"):
		return false
	default:
		return strings.Contains(accept, "*/*")
	}
}

// RequireAuthBrowser returns a middleware that requires authentication with browser-aware behavior.
// For API requests: returns 401 JSON response if not authenticated.
// For browser requests: redirects to the login page if not authenticated.
// When sign-in is not configured both get a 503 instead.
func RequireAuthBrowser(authSvc SessionReader, pages *Pages) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessionLookup(r, authSvc)
			if err != nil {
				renderUnavailable(w, r, pages)
				return
			}
			if session == nil {
				if IsBrowserRequest(r) {
					redirectToLogin(w, r)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}

			ctx := WithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoleBrowser returns a middleware that admits only the given roles.
// It must run after RequireAuthBrowser.
func RequireRoleBrowser(roles ...domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if role := CurrentRole(r.Context()); role == domainauth.RoleGuest || !slices.Contains(roles, role) {
				if IsBrowserRequest(r) {
					showAccessDenied(w, r)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// redirectToLogin redirects browser requests to the login page with the current URL as redirect_uri.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	q.Set("redirect_uri", safeRedirectPath(r.URL.RequestURI()))
	http.Redirect(w, r, domainauth.LoginRoute+"?"+q.Encode(), http.StatusSeeOther)
}

// showAccessDenied shows an access denied page for browser requests.
func showAccessDenied(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Access Denied: You don't have permission to access this resource", http.StatusForbidden)
}

// renderUnavailable answers with 503 when sign-in is not configured.
func renderUnavailable(w http.ResponseWriter, r *http.Request, pages *Pages) {
	if IsBrowserRequest(r) && pages != nil {
		pages.Render(w, r, renderParams{
			Status: http.StatusServiceUnavailable,
			Page:   pageUnavailable,
			Data:   pageData{Title: "Sign-in unavailable", Message: service.MsgAuthDisabled},
		})
		return
	}
	WriteError(w, ErrorParams{ErrCode: "auth_unavailable", Err: service.ErrAuthUnavailable})
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
