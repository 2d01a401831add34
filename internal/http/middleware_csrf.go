package httpx

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const (
	cookieCSRF     = "csrf_token"
	headerCSRF     = "X-Csrf-Token"
	formFieldCSRF  = "csrf_token"
	csrfTokenBytes = 32
	csrfMaxAge     = 12 * 3600
)

// CSRFProtection guards session-mutating routes with a double-submit cookie.
// Every request gets a token (issued once, readable by page scripts); unsafe
// methods must echo it in the X-Csrf-Token header or the csrf_token form field.
func CSRFProtection(cookieDomain string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	jar := cookieJar{domain: cookieDomain}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookieValue(r, cookieCSRF)
			if token == "" {
				var err error
				if token, err = newCSRFToken(); err != nil {
					logger.ErrorContext(r.Context(), "csrf token generation failed", "error", err)
					http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
					return
				}
				jar.setCSRF(w, r, token)
			}
			r = r.WithContext(withCSRFToken(r.Context(), token))

			if isUnsafeMethod(r.Method) && !csrfTokenMatches(r, token) {
				logger.WarnContext(r.Context(), "csrf validation failed", "path", r.URL.Path)
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// newCSRFToken fails closed when the random source is unavailable.
func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// setCSRF is Strict and not HttpOnly so scripts can echo it back.
func (j cookieJar) setCSRF(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieCSRF,
		Value:    token,
		Path:     "/",
		Domain:   j.domain,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   csrfMaxAge,
	})
}

func csrfTokenMatches(r *http.Request, expected string) bool {
	if expected == "" {
		return false
	}
	submitted := r.Header.Get(headerCSRF)
	if submitted == "" && isFormContent(r.Header.Get("Content-Type")) {
		if err := r.ParseForm(); err != nil {
			return false
		}
		submitted = r.PostFormValue(formFieldCSRF)
	}
	if submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(expected)) == 1
}

func isFormContent(contentType string) bool {
	return strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data")
}
