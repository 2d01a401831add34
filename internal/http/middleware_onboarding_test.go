package httpx

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnboardingGate_RedirectsIncompleteParent(t *testing.T) {
	s := newTestStack(t, domainauth.RoleParent)
	s.signIn(t, domainauth.Session{ID: "p", UserID: "u1", Role: domainauth.RoleParent, SchoolID: "sch-1"})

	w := s.do(browserRequest(http.MethodGet, "/parent?tab=merits", sessionCookie("p")))
	require.Equal(t, http.StatusSeeOther, w.Code)

	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, domainauth.OnboardingRoute, u.Path)
	assert.Equal(t, domainauth.StepChildren, u.Query().Get("step"))
	assert.Equal(t, "/parent?tab=merits", u.Query().Get("return_to"))

	w = s.do(jsonRequest(http.MethodGet, "/parent", sessionCookie("p")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "onboarding_required")
}

func TestOnboardingGate_OnboardingRoutePasses(t *testing.T) {
	s := newTestStack(t, domainauth.RoleParent)
	s.signIn(t, domainauth.Session{ID: "p", UserID: "u1", Role: domainauth.RoleParent})

	w := s.do(browserRequest(http.MethodGet, domainauth.OnboardingRoute+"?step=school", sessionCookie("p")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "enter your school code")
}

func TestOnboardingGate_CompleteParentPasses(t *testing.T) {
	s := newTestStack(t, domainauth.RoleParent)
	s.signIn(t, domainauth.Session{
		ID: "p", UserID: "u1", Role: domainauth.RoleParent,
		SchoolID: "sch-1", Children: []domainauth.ChildRef{{ID: "c1"}},
	})

	w := s.do(browserRequest(http.MethodGet, "/parent", sessionCookie("p")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOnboardingGate_StandsAsideWhileIntentActive(t *testing.T) {
	s := newTestStack(t, domainauth.RoleParent)
	sess := s.signIn(t, domainauth.Session{ID: "p", UserID: "u1", Role: domainauth.RoleParent})
	ctx := context.Background()

	// an in-flight transition owns navigation and points at the onboarding wizard
	dest, err := s.nav.Navigate(ctx, &sess, domainauth.RouteContext{})
	require.NoError(t, err)
	require.Contains(t, dest, domainauth.OnboardingRoute)

	// a request elsewhere during the transition is not bounced
	w := s.do(browserRequest(http.MethodGet, "/parent", sessionCookie("p")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.nav.Active(ctx, "p"))

	// arriving at the destination settles the intent
	w = s.do(browserRequest(http.MethodGet, dest, sessionCookie("p")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.nav.Active(ctx, "p"))

	cur, err := s.intents.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, domainauth.NavSettled, cur.State)

	// with the intent settled the gate applies again
	w = s.do(browserRequest(http.MethodGet, "/parent", sessionCookie("p")))
	assert.Equal(t, http.StatusSeeOther, w.Code)
}
