package auth

import (
	"errors"
	"net/url"
)

// Well-known routes.
const (
	LoginRoute      = "/login"
	OnboardingRoute = "/parent/onboarding"
)

var (
	// ErrNoIdentity is returned when there is no session to route.
	ErrNoIdentity = errors.New("no identity")
	// ErrNoDashboard is returned when the session role has no landing page.
	ErrNoDashboard = errors.New("role has no dashboard")
)

// RouteContext carries request-scoped inputs to ResolveDestination.
type RouteContext struct {
	SignupIntent bool
	Step         string // explicit wizard step from the callback URL
	ReturnTo     string // path to come back to after onboarding
}

// DashboardRoute returns the default landing route for a role.
func DashboardRoute(r Role) string { return "/" + string(r) }

// ResolveDestination picks the landing route for a resolved session.
func ResolveDestination(s *Session, rc RouteContext) (string, error) {
	if s == nil {
		return "", ErrNoIdentity
	}
	if s.Role == RoleParent && (rc.SignupIntent || NeedsOnboarding(s)) {
		step := rc.Step
		if !ValidStep(step) {
			step = NextOnboardingStep(s)
		}
		return OnboardingURL(step, rc.ReturnTo), nil
	}
	if !s.Role.HasDashboard() {
		return "", ErrNoDashboard
	}
	return DashboardRoute(s.Role), nil
}

// OnboardingURL builds the onboarding route for a step, preserving returnTo.
func OnboardingURL(step, returnTo string) string {
	q := url.Values{}
	q.Set("step", step)
	if returnTo != "" {
		q.Set("return_to", returnTo)
	}
	u := url.URL{Path: OnboardingRoute, RawQuery: q.Encode()}
	return u.String()
}
