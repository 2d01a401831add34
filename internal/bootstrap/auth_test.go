package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pdsapp/pds/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildAuthUnavailableWithoutRedis(t *testing.T) {
	tests := []struct {
		name string
		auth config.AuthConfig
	}{
		{
			name: "dev auth mode",
			auth: config.AuthConfig{
				Mode: config.AuthModeMock,
				DevAuth: config.DevAuthConfig{
					UserID: "dev",
					Email:  "dev@example.com",
					Role:   "parent",
				},
			},
		},
		{
			name: "oauth mode",
			auth: config.AuthConfig{
				Mode: config.AuthModeOAuth,
				OAuth: config.OAuthConfig{
					ClientID:     "client-id",
					ClientSecret: "client-secret",
					DiscoveryURL: "https://issuer.example.com",
					RedirectURL:  "https://pds.example.org/auth/callback",
					Scope:        "openid",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := BuildAuth(context.Background(), AuthConfig{Auth: tt.auth, Logger: discardLogger()})

			require.NotNil(t, c.Sessions)
			require.NotNil(t, c.Auth)
			require.NotNil(t, c.Navigator)
			require.NotNil(t, c.Callbacks)
			assert.False(t, c.Sessions.Available())
			assert.False(t, c.Auth.Available())
		})
	}
}

func TestBuildAuthUnavailableWhenOAuthIncomplete(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	c := BuildAuth(context.Background(), AuthConfig{
		Auth:        config.AuthConfig{Mode: config.AuthModeOAuth},
		RedisClient: client,
		Logger:      discardLogger(),
	})

	assert.False(t, c.Auth.Available())
	require.Error(t, c.Sessions.UnavailableReason())
	assert.Contains(t, c.Sessions.UnavailableReason().Error(), "OAUTH_CLIENT_ID")
}

func TestBuildAuthRejectsInvalidRoleClaim(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	c := BuildAuth(context.Background(), AuthConfig{
		Auth: config.AuthConfig{
			Mode:      config.AuthModeMock,
			RoleClaim: "roles[",
			DevAuth:   config.DevAuthConfig{UserID: "dev", Email: "dev@example.com"},
		},
		RedisClient: client,
		Logger:      discardLogger(),
	})

	assert.False(t, c.Auth.Available())
}

func TestBuildAuthDevMode(t *testing.T) {
	// go-redis dials lazily, so wiring never touches the network.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	auth := config.AuthConfig{
		Mode:      config.AuthModeMock,
		RoleClaim: "pds_role",
		DevAuth:   config.DevAuthConfig{UserID: "dev", Email: "dev@example.com", Role: "teacher"},
	}
	auth.Sanitize()

	c := BuildAuth(context.Background(), AuthConfig{
		Auth:        auth,
		RedisConfig: config.RedisConfig{SessionPrefix: "session:", EventChannel: "pds:auth-events"},
		RedisClient: client,
		Logger:      discardLogger(),
	})

	assert.True(t, c.Auth.Available())
	assert.Equal(t, auth.Callback.NavIntentTTL, c.Navigator.TTL())

	res, err := c.Auth.BeginLogin(context.Background(), "/")
	require.NoError(t, err)
	assert.Contains(t, res.AuthURL, "/auth/callback?")
	assert.NotEmpty(t, res.State)
	assert.NotEmpty(t, res.Verifier)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything"))
}
