package auth

import "time"

// NavState is the lifecycle of a post-login navigation decision.
type NavState string

const (
	NavIdle       NavState = "idle"
	NavNavigating NavState = "navigating"
	NavSettled    NavState = "settled"
)

// NavIntent is the single owned redirect decision for a login transition.
// The first writer wins; every other redirect-capable component reads it.
type NavIntent struct {
	State       NavState  `json:"state"`
	Destination string    `json:"destination"`
	SetAt       time.Time `json:"set_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Active reports whether the intent still holds the navigation lock at now.
func (n NavIntent) Active(now time.Time) bool {
	return n.State == NavNavigating && now.Before(n.ExpiresAt)
}
