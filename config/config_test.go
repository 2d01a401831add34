package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "oauth")
	t.Setenv("OAUTH_CLIENT_ID", "pds-web")
	t.Setenv("OAUTH_CLIENT_SECRET", "super-secret")
	t.Setenv("OAUTH_REDIRECT_URL", "https://pds.example.org/auth/callback")
	t.Setenv("OAUTH_DISCOVERY_URL", "https://accounts.google.com/.well-known/openid-configuration")
	t.Setenv("OAUTH_SCOPE", "openid profile email")
	t.Setenv("OAUTH_PROMPT", "select_account")
	t.Setenv("DEV_AUTH_USER_ID", "dev-user")
	t.Setenv("DEV_AUTH_EMAIL", "dev@example.com")
	t.Setenv("DEV_AUTH_ROLE", "teacher")
	t.Setenv("DEV_AUTH_GROUPS", "pds-teachers;staff")
	t.Setenv("AUTH_ACCESS_TOKEN_SECRET", "hs256-secret")
	t.Setenv("AUTH_ROLE_CLAIM", "app_metadata.role")
	t.Setenv("AUTH_CALLBACK_WAIT", "7s")
	t.Setenv("AUTH_NAV_INTENT_TTL", "750ms")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	expected := AuthConfig{
		Mode: AuthModeOAuth,
		OAuth: OAuthConfig{
			ClientID:     "pds-web",
			ClientSecret: "super-secret",
			RedirectURL:  "https://pds.example.org/auth/callback",
			Scope:        "openid profile email",
			DiscoveryURL: "https://accounts.google.com/.well-known/openid-configuration",
			Prompt:       "select_account",
		},
		DevAuth: DevAuthConfig{
			UserID:    "dev-user",
			Email:     "dev@example.com",
			FirstName: "Dev",
			LastName:  "User",
			Role:      "teacher",
			Groups:    []string{"pds-teachers", "staff"},
		},
		AccessTokenSecret:   "hs256-secret",
		RoleClaim:           "app_metadata.role",
		AdminGroup:          "pds-admins",
		TeacherGroup:        "pds-teachers",
		ParentGroup:         "pds-parents",
		SessionRefreshAfter: time.Minute,
		Callback: CallbackConfig{
			Wait:                 7 * time.Second,
			ErrorRedirectDelay:   3 * time.Second,
			TimeoutRedirectDelay: 2 * time.Second,
			NavIntentTTL:         750 * time.Millisecond,
		},
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
	if !cfg.Auth.OAuth.Configured() {
		t.Fatalf("expected oauth to be configured")
	}
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	var m AuthMode
	if err := m.UnmarshalText([]byte("MOCK")); err != nil || m != AuthModeMock {
		t.Fatalf("UnmarshalText(MOCK) = %q, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("saml")); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestAuthConfig_Sanitize(t *testing.T) {
	cfg := AuthConfig{
		RoleClaim: "  pds_role ",
		Callback:  CallbackConfig{Wait: -1, NavIntentTTL: 0},
	}

	cfg.Sanitize()

	if cfg.RoleClaim != "pds_role" {
		t.Fatalf("expected role claim to be trimmed, got %q", cfg.RoleClaim)
	}
	if cfg.OAuth.Scope != "openid profile email" {
		t.Fatalf("expected default scope, got %q", cfg.OAuth.Scope)
	}
	want := CallbackConfig{
		Wait:                 5 * time.Second,
		ErrorRedirectDelay:   3 * time.Second,
		TimeoutRedirectDelay: 2 * time.Second,
		NavIntentTTL:         500 * time.Millisecond,
	}
	if cfg.Callback != want {
		t.Fatalf("unexpected callback defaults: %#v", cfg.Callback)
	}
	if cfg.SessionRefreshAfter != time.Minute {
		t.Fatalf("expected refresh default, got %v", cfg.SessionRefreshAfter)
	}
}

func TestAppConfig_SanitizeLogLevel(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	cfg := AppConfig{LogLevel: " DEBUG "}
	cfg.Sanitize()
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %q", cfg.LogLevel)
	}

	cfg = AppConfig{LogLevel: "verbose"}
	cfg.Sanitize()
	if cfg.LogLevel != "info" {
		t.Fatalf("expected fallback to info, got %q", cfg.LogLevel)
	}
}

func TestAppConfig_DetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Fatalf("expected dev mode from NODE_ENV")
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	cfg := HTTPConfig{BaseURL: " https://pds.example.org/ "}
	cfg.Sanitize()
	if cfg.BaseURL != "https://pds.example.org" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
	if cfg.Addr != ":8080" || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
}

func TestHTTPConfig_SanitizeCookieDomain(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		" .PDS.example.org": "pds.example.org",
		"example.org":       "example.org",
		"co.uk":             "",
		"com":               "",
		"localhost":         "",
	}
	for in, want := range tests {
		cfg := HTTPConfig{CookieDomain: in}
		cfg.Sanitize()
		if cfg.CookieDomain != want {
			t.Errorf("CookieDomain %q sanitized to %q, want %q", in, cfg.CookieDomain, want)
		}
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "pds" {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}
}

func TestAppConfig_SanitizeLogFormat(t *testing.T) {
	cfg := AppConfig{LogFormat: " TEXT "}
	cfg.Sanitize()
	if cfg.LogFormat != "text" {
		t.Fatalf("expected text, got %q", cfg.LogFormat)
	}

	cfg = AppConfig{LogFormat: "xml"}
	cfg.Sanitize()
	if cfg.LogFormat != "json" {
		t.Fatalf("expected json fallback, got %q", cfg.LogFormat)
	}
}

func TestDBConfig_Sanitize(t *testing.T) {
	cfg := DBConfig{MaxOpenConns: 0, MaxIdleConns: 50}
	cfg.Sanitize()
	if cfg.MaxOpenConns != 10 || cfg.MaxIdleConns != 10 || cfg.ConnMaxLifetime != 5*time.Minute {
		t.Fatalf("unexpected pool settings %#v", cfg)
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	var cfg RedisConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "REDIS_"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()
	if cfg.DialTimeout != 5*time.Second || cfg.SessionPrefix != "session:" || cfg.EventChannel != "pds:auth-events" {
		t.Fatalf("unexpected redis defaults %#v", cfg)
	}

	cfg = RedisConfig{}
	cfg.Sanitize()
	if cfg.SessionPrefix != "session:" || cfg.EventChannel != "pds:auth-events" {
		t.Fatalf("expected restored defaults, got %#v", cfg)
	}
}

func TestObservabilityMetricsConfig_ParseTags(t *testing.T) {
	t.Setenv("OBSERVABILITY_METRICS_TAGS", "env:prod,region:us")
	var cfg ObservabilityMetricsConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]string{"env": "prod", "region": "us"}
	if !reflect.DeepEqual(cfg.Tags, want) {
		t.Fatalf("tags = %#v, want %#v", cfg.Tags, want)
	}
}
