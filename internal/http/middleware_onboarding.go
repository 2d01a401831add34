package httpx

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
)

// NavigationIntents is the part of the navigator the gate consults.
type NavigationIntents interface {
	Active(ctx context.Context, sessionID string) bool
	Settle(ctx context.Context, sessionID, path string) bool
}

// OnboardingGate returns a middleware that sends parents with an incomplete
// profile to the onboarding wizard. It must run after RequireAuthBrowser.
//
// While a login transition owns navigation the gate stands aside, and reaching
// the transition's destination settles it.
func OnboardingGate(nav NavigationIntents, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := CurrentSession(r.Context())
			if session == nil || nav == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if nav.Settle(ctx, session.ID, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !domainauth.NeedsOnboarding(session) || r.URL.Path == domainauth.OnboardingRoute {
				next.ServeHTTP(w, r)
				return
			}
			if nav.Active(ctx, session.ID) {
				next.ServeHTTP(w, r)
				return
			}

			target := domainauth.OnboardingURL(domainauth.NextOnboardingStep(session), safeRedirectPath(r.URL.RequestURI()))
			logger.DebugContext(ctx, "onboarding required", "session_id", session.ID, "path", r.URL.Path)
			if !IsBrowserRequest(r) {
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":       "onboarding_required",
					"message":     "Finish setting up your account to continue.",
					"redirect_to": target,
				})
				return
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
		})
	}
}
