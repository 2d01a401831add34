package auth

// Package auth contains domain-level types for authentication, sessions and
// post-login routing. It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleGuest   Role = "guest"
)

// ParseRole normalizes a raw role string. Unknown values map to RoleGuest.
func ParseRole(raw string) Role {
	switch r := Role(raw); r {
	case RoleAdmin, RoleTeacher, RoleParent:
		return r
	default:
		return RoleGuest
	}
}

// HasDashboard reports whether the role owns a default dashboard route.
func (r Role) HasDashboard() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleParent
}

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID    string // stable user identifier (sub)
	FirstName string
	LastName  string
	Email     string
	Groups    []string
	Claims    map[string]any // raw claims, used for role extraction
	ExpiresAt time.Time      // absolute expiry from IdP token
}

// ChildRef points at a student linked to a parent account.
type ChildRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Profile is the application-owned part of a user: role and school linkage.
type Profile struct {
	UserID   string
	Email    string
	Role     Role
	SchoolID string
	Children []ChildRef
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	SchoolID  string     `json:"school_id,omitempty"`
	Children  []ChildRef `json:"children,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// IsGuest returns true if the session role is guest.
func (s Session) IsGuest() bool { return s.Role == RoleGuest }

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool { return now.After(s.ExpiresAt) }

// WithProfile returns a copy of s carrying the profile's role and linkage.
// An empty profile role leaves the session role untouched.
func (s Session) WithProfile(p Profile) Session {
	if p.Role != "" {
		s.Role = p.Role
	}
	s.SchoolID = p.SchoolID
	s.Children = append([]ChildRef(nil), p.Children...)
	return s
}

// EventType enumerates session transitions.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
	EventRefreshed EventType = "refreshed"
)

// Event describes a session transition. AttemptID ties a sign-in back to the
// login attempt (OAuth state) that produced it. Origin names the instance
// that published it.
type Event struct {
	Type      EventType `json:"type"`
	Origin    string    `json:"origin,omitempty"`
	SessionID string    `json:"session_id"`
	AttemptID string    `json:"attempt_id,omitempty"`
	Session   *Session  `json:"session,omitempty"`
}
