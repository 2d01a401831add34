package httpx

import (
	"net/http"
	"strings"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
)

// PageHandlers serves the dashboard and onboarding shells.
type PageHandlers struct {
	Pages *Pages
}

// Dashboard renders the landing page of the session's role.
// GET /admin, /teacher, /parent.
func (h *PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	session := CurrentSession(r.Context())
	role := string(session.Role)
	h.Pages.Render(w, r, renderParams{
		Page: pageDashboard,
		Data: pageData{
			Title: titleCase(role) + " dashboard",
			User:  snapshotOf(session),
			Role:  role,
		},
	})
}

// Onboarding renders the parent onboarding wizard shell.
// GET /parent/onboarding?step=<school|children>&return_to=<path>.
func (h *PageHandlers) Onboarding(w http.ResponseWriter, r *http.Request) {
	session := CurrentSession(r.Context())
	step := r.URL.Query().Get("step")
	if !domainauth.ValidStep(step) {
		step = domainauth.NextOnboardingStep(session)
	}
	returnTo := r.URL.Query().Get("return_to")
	if returnTo != "" {
		returnTo = safeRedirectPath(returnTo)
	}
	h.Pages.Render(w, r, renderParams{
		Page: pageOnboarding,
		Data: pageData{
			Title:    "Set up your account",
			User:     snapshotOf(session),
			Step:     step,
			ReturnTo: returnTo,
		},
	})
}

// Home sends signed-in users to their landing page and everyone else to sign in.
// GET /.
func (h *PageHandlers) Home(w http.ResponseWriter, r *http.Request) {
	session := CurrentSession(r.Context())
	if session == nil {
		http.Redirect(w, r, domainauth.LoginRoute, http.StatusFound)
		return
	}
	dest, err := domainauth.ResolveDestination(session, domainauth.RouteContext{})
	if err != nil {
		h.Pages.Render(w, r, renderParams{
			Status: http.StatusForbidden,
			Page:   pageError,
			Data:   pageData{Title: "No access yet", Message: "Your account has not been assigned a role yet.", User: snapshotOf(session)},
		})
		return
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
