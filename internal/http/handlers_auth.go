package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/service"
)

// SessionReader is what middleware needs to resolve a request's session.
type SessionReader interface {
	Available() bool
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	SessionReader
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	RefreshSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// CallbackRunner resolves callback requests into outcomes.
type CallbackRunner interface {
	Handle(ctx context.Context, params service.CallbackParams) service.Outcome
	Wait(ctx context.Context, params service.CallbackParams) (service.Outcome, error)
}

// NavigationClearer drops a session's navigation intent on sign-out.
type NavigationClearer interface {
	Clear(ctx context.Context, sessionID string)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	Callbacks    CallbackRunner
	Nav          NavigationClearer
	Pages        *Pages
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) jar() cookieJar { return cookieJar{domain: h.CookieDomain} }

// LoginPage renders the sign-in page.
// GET /login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if !h.Svc.Available() {
		renderUnavailable(w, r, h.Pages)
		return
	}
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	login := "/auth/login?" + q.Encode()
	q.Set("signup", "true")
	signup := "/auth/login?" + q.Encode()

	data := pageData{Title: "Sign in", LoginURL: login, SignupURL: signup}
	if u, ok := decodeSnapshot(cookieValue(r, cookieUser)); ok {
		data.User = &u
	}
	h.Pages.Render(w, r, renderParams{Page: pageLogin, Data: data})
}

// Login handles the login initiation endpoint.
// GET /auth/login?redirect_uri=<optional_redirect>&signup=<bool>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.Svc.BeginLogin(r.Context(), redirectURI)
	if err != nil {
		if errors.Is(err, service.ErrAuthUnavailable) {
			renderUnavailable(w, r, h.Pages)
			return
		}
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     err,
		})
		return
	}

	signup := ""
	if isTruthy(r.URL.Query().Get("signup")) {
		signup = "true"
	} else {
		h.jar().clear(w, r, cookieSignup)
	}
	h.jar().setLogin(w, r, map[string]string{
		cookieState:         result.State,
		cookieNonce:         result.Nonce,
		cookieVerifier:      result.Verifier,
		cookieSignup:        signup,
		cookiePostLoginPath: redirectURI,
	})

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles the OAuth callback endpoint.
// GET /auth/callback?code=<code>&state=<state> (or error, error_description, access_token).
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	params := h.callbackParams(r)
	params.AccessToken = r.URL.Query().Get("access_token")
	h.respond(w, r, h.Callbacks.Handle(r.Context(), params))
}

// CallbackToken accepts an implicit-flow access token forwarded from the URL fragment.
// POST /auth/callback/token (form field access_token).
func (h *AuthHandlers) CallbackToken(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("access_token")
	if token == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_access_token",
			Err:     errors.New("access token is required"),
		})
		return
	}
	params := h.callbackParams(r)
	params.Code, params.Error = "", ""
	params.AccessToken = token
	h.respond(w, r, h.Callbacks.Handle(r.Context(), params))
}

// CallbackWait blocks until the login attempt signs in or the wait times out.
// GET /auth/callback/wait.
func (h *AuthHandlers) CallbackWait(w http.ResponseWriter, r *http.Request) {
	out, err := h.Callbacks.Wait(r.Context(), h.callbackParams(r))
	if err != nil {
		// client went away; nothing to write
		h.logger().DebugContext(r.Context(), "callback wait abandoned", "error", err)
		return
	}
	h.respond(w, r, out)
}

func (h *AuthHandlers) callbackParams(r *http.Request) service.CallbackParams {
	q := r.URL.Query()
	return service.CallbackParams{
		Code:              q.Get("code"),
		State:             q.Get("state"),
		Error:             q.Get("error"),
		ErrorDescription:  q.Get("error_description"),
		Step:              q.Get("step"),
		Signup:            isTruthy(q.Get("signup")) || cookieValue(r, cookieSignup) == "true",
		ExpectedState:     cookieValue(r, cookieState),
		Nonce:             cookieValue(r, cookieNonce),
		Verifier:          cookieValue(r, cookieVerifier),
		ExistingSessionID: cookieValue(r, cookieSession),
		ReturnTo:          returnToFromCookie(r),
	}
}

// returnToFromCookie keeps the original deep link only when it is somewhere
// other than the app root.
func returnToFromCookie(r *http.Request) string {
	p := safeRedirectPath(cookieValue(r, cookiePostLoginPath))
	if p == "/" {
		return ""
	}
	return p
}

// callbackResponse is the JSON shape of a callback outcome.
type callbackResponse struct {
	State           service.CallbackState `json:"state"`
	Message         string                `json:"message,omitempty"`
	RedirectTo      string                `json:"redirect_to,omitempty"`
	RedirectAfterMS int64                 `json:"redirect_after_ms"`
}

func (h *AuthHandlers) respond(w http.ResponseWriter, r *http.Request, out service.Outcome) {
	jar := h.jar()
	browser := IsBrowserRequest(r)

	switch out.State {
	case service.CallbackSuccess:
		jar.setSession(w, r, out.Session)
		jar.clear(w, r, loginCookies...)
		if browser {
			http.Redirect(w, r, out.RedirectTo, http.StatusFound)
			return
		}
		WriteJSON(w, http.StatusOK, callbackResponse{State: out.State, RedirectTo: out.RedirectTo})

	case service.CallbackError:
		jar.clear(w, r, loginCookies...)
		if errors.Is(out.Err, service.ErrAuthUnavailable) {
			renderUnavailable(w, r, h.Pages)
			return
		}
		if browser {
			secs := int(out.RedirectAfter / time.Second)
			w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", secs, out.RedirectTo))
			h.Pages.Render(w, r, renderParams{
				Status: http.StatusUnauthorized,
				Page:   pageError,
				Data: pageData{
					Title:      "Sign-in failed",
					Message:    out.Message,
					RedirectTo: out.RedirectTo,
					DelaySecs:  secs,
				},
			})
			return
		}
		WriteJSON(w, http.StatusUnauthorized, callbackResponse{
			State:           out.State,
			Message:         out.Message,
			RedirectTo:      out.RedirectTo,
			RedirectAfterMS: out.RedirectAfter.Milliseconds(),
		})

	default:
		if browser {
			h.Pages.Render(w, r, renderParams{Page: pageLoading, Data: pageData{Title: "Signing in", Message: out.Message}})
			return
		}
		WriteJSON(w, http.StatusAccepted, callbackResponse{State: out.State, Message: out.Message})
	}
}

// Logout handles the logout endpoint.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if id := cookieValue(r, cookieSession); id != "" {
		if err := h.Svc.Logout(r.Context(), id); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
		if h.Nav != nil {
			h.Nav.Clear(r.Context(), id)
		}
	}
	h.jar().clear(w, r, cookieSession, cookieUser)
	h.jar().clear(w, r, loginCookies...)

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": domainauth.LoginRoute,
		})
		return
	}
	http.Redirect(w, r, domainauth.LoginRoute, http.StatusSeeOther)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	session, err := sessionLookup(r, h.Svc)
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"authenticated": false,
			"available":     false,
		})
		return
	}
	if session == nil {
		if cookieValue(r, cookieSession) != "" {
			h.jar().clear(w, r, cookieSession, cookieUser)
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"available":     true,
		})
		return
	}
	WriteJSON(w, http.StatusOK, statusBody(session))
}

// RefreshSession reloads profile linkage into the current session.
// POST /auth/session/refresh.
func (h *AuthHandlers) RefreshSession(w http.ResponseWriter, r *http.Request) {
	current := CurrentSession(r.Context())
	if current == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}
	session, err := h.Svc.RefreshSession(r.Context(), current.ID)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "refresh session failed", "error", err, "session_id", current.ID)
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "refresh_failed",
			Err:     errors.New("could not reload your profile"),
		})
		return
	}
	h.jar().setSession(w, r, session)
	WriteJSON(w, http.StatusOK, statusBody(session))
}

func statusBody(s *domainauth.Session) map[string]any {
	return map[string]any{
		"authenticated": true,
		"available":     true,
		"user": map[string]any{
			"id":         s.UserID,
			"first_name": s.FirstName,
			"last_name":  s.LastName,
			"email":      s.Email,
			"role":       s.Role,
			"school_id":  s.SchoolID,
			"children":   s.Children,
		},
		"needs_onboarding": domainauth.NeedsOnboarding(s),
		"expires_at":       s.ExpiresAt,
	}
}

func isTruthy(v string) bool {
	return v == "true" || v == "1"
}
