package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// Prompt is forwarded to the IdP, e.g. "select_account" for Google.
	Prompt string `env:"PROMPT"`
}

// Configured reports whether the minimum OIDC settings are present.
func (o OAuthConfig) Configured() bool {
	return o.ClientID != "" && o.DiscoveryURL != "" && o.RedirectURL != ""
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID    string   `env:"USER_ID"    envDefault:"dev-user"`
	Email     string   `env:"EMAIL"      envDefault:"dev@example.com"`
	FirstName string   `env:"FIRST_NAME" envDefault:"Dev"`
	LastName  string   `env:"LAST_NAME"  envDefault:"User"`
	Role      string   `env:"ROLE"       envDefault:"parent"`
	Groups    []string `env:"GROUPS"                             envSeparator:";"`
}

// CallbackConfig controls the timing of the sign-in callback.
type CallbackConfig struct {
	// Wait bounds how long the callback waits for an identity to show up.
	Wait time.Duration `env:"CALLBACK_WAIT" envDefault:"5s"`
	// ErrorRedirectDelay is how long error pages stay up before returning to login.
	ErrorRedirectDelay time.Duration `env:"ERROR_REDIRECT_DELAY" envDefault:"3s"`
	// TimeoutRedirectDelay applies when no identity resolved within Wait.
	TimeoutRedirectDelay time.Duration `env:"TIMEOUT_REDIRECT_DELAY" envDefault:"2s"`
	// NavIntentTTL is how long a login transition owns navigation.
	NavIntentTTL time.Duration `env:"NAV_INTENT_TTL" envDefault:"500ms"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AccessTokenSecret verifies HS256 implicit-flow access tokens. When empty
	// the OIDC userinfo endpoint is used instead.
	AccessTokenSecret string `env:"AUTH_ACCESS_TOKEN_SECRET"`
	AccessTokenIssuer string `env:"AUTH_ACCESS_TOKEN_ISSUER"`

	// RoleClaim is a JMESPath expression evaluated against the IdP claims.
	RoleClaim string `env:"AUTH_ROLE_CLAIM" envDefault:"pds_role"`

	// Group fallbacks used when RoleClaim yields nothing.
	AdminGroup   string `env:"AUTH_ADMIN_GROUP"   envDefault:"pds-admins"`
	TeacherGroup string `env:"AUTH_TEACHER_GROUP" envDefault:"pds-teachers"`
	ParentGroup  string `env:"AUTH_PARENT_GROUP"  envDefault:"pds-parents"`

	// SessionRefreshAfter is how stale a cached session may get before a
	// background reload.
	SessionRefreshAfter time.Duration `env:"AUTH_SESSION_REFRESH_AFTER" envDefault:"1m"`

	Callback CallbackConfig `envPrefix:"AUTH_"`
}

// Sanitize restores defaults for non-positive durations.
func (a *AuthConfig) Sanitize() {
	a.RoleClaim = strings.TrimSpace(a.RoleClaim)
	a.OAuth.Scope = strings.TrimSpace(a.OAuth.Scope)
	if a.OAuth.Scope == "" {
		a.OAuth.Scope = "openid profile email"
	}
	if a.SessionRefreshAfter <= 0 {
		a.SessionRefreshAfter = time.Minute
	}
	c := &a.Callback
	if c.Wait <= 0 {
		c.Wait = 5 * time.Second
	}
	if c.ErrorRedirectDelay <= 0 {
		c.ErrorRedirectDelay = 3 * time.Second
	}
	if c.TimeoutRedirectDelay <= 0 {
		c.TimeoutRedirectDelay = 2 * time.Second
	}
	if c.NavIntentTTL <= 0 {
		c.NavIntentTTL = 500 * time.Millisecond
	}
}
