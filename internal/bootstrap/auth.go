package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdsapp/pds/config"
	"github.com/pdsapp/pds/internal/adapters/accesstoken"
	"github.com/pdsapp/pds/internal/adapters/authroles"
	"github.com/pdsapp/pds/internal/adapters/devauth"
	"github.com/pdsapp/pds/internal/adapters/oidc"
	redisadapter "github.com/pdsapp/pds/internal/adapters/redis"
	"github.com/pdsapp/pds/internal/data"
	"github.com/pdsapp/pds/internal/observability/statsd"
	"github.com/pdsapp/pds/internal/ports"
	"github.com/pdsapp/pds/internal/service"
	"github.com/redis/go-redis/v9"
)

// AuthConfig contains configuration for the auth components.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisConfig config.RedisConfig
	RedisClient redis.UniversalClient
	DB          *sql.DB // Optional: profile linkage
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// AuthComponents is the wired sign-in stack.
type AuthComponents struct {
	Sessions  *service.SessionTracker
	Auth      *service.AuthService
	Navigator *service.Navigator
	Callbacks *service.CallbackService
}

// identityProvider is what both the OIDC and dev adapters implement.
type identityProvider interface {
	ports.AuthProvider
	ports.AccessTokenVerifier
}

// BuildAuth wires the auth components for the configured mode. When the
// identity provider cannot be built the components are still returned, backed
// by an unavailable session tracker, so pages can report the misconfiguration
// instead of looping through sign-in.
func BuildAuth(ctx context.Context, cfg AuthConfig) AuthComponents {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	roles, err := authroles.NewClaimMapper(authroles.ClaimMapperOptions{
		Expression: cfg.Auth.RoleClaim,
		Groups: authroles.StaticRoleMapper{
			AdminGroup:   cfg.Auth.AdminGroup,
			TeacherGroup: cfg.Auth.TeacherGroup,
			ParentGroup:  cfg.Auth.ParentGroup,
		},
		Logger: logger,
	})
	if err != nil {
		return unavailableAuth(fmt.Errorf("role mapper: %w", err), cfg, logger)
	}

	if cfg.RedisClient == nil {
		return unavailableAuth(errors.New("redis client not configured"), cfg, logger)
	}

	prov, err := buildProvider(ctx, cfg.Auth)
	if err != nil {
		return unavailableAuth(err, cfg, logger)
	}

	var profiles ports.ProfileRepository
	if cfg.DB != nil {
		profiles = data.NewProfileRepo(cfg.DB)
	} else {
		logger.Warn("profile database disabled; school linkage will not be loaded")
	}

	tracker := service.NewSessionTracker(service.SessionTrackerOptions{
		Store: redisadapter.NewSessionStoreWithPrefix(cfg.RedisClient, cfg.RedisConfig.SessionPrefix),
		Bus: redisadapter.NewEventBus(redisadapter.EventBusOptions{
			Client:  cfg.RedisClient,
			Channel: cfg.RedisConfig.EventChannel,
			Logger:  logger,
		}),
		Profiles: profiles,
		Logger:   logger,
		Config:   service.SessionTrackerConfig{RefreshAfter: cfg.Auth.SessionRefreshAfter},
	})

	tokens := accesstoken.New(accesstoken.Config{
		Secret:   cfg.Auth.AccessTokenSecret,
		Issuer:   cfg.Auth.AccessTokenIssuer,
		Fallback: prov,
	})

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Provider: prov,
		Tokens:   tokens,
		Sessions: tracker,
		Roles:    roles,
		Profiles: profiles,
		Logger:   logger,
	})

	logger.Info("authentication configured", "mode", cfg.Auth.Mode, "profiles", profiles != nil)
	return assemble(tracker, authSvc, cfg, logger)
}

func buildProvider(ctx context.Context, auth config.AuthConfig) (identityProvider, error) {
	switch auth.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:    auth.DevAuth.UserID,
			Email:     auth.DevAuth.Email,
			FirstName: auth.DevAuth.FirstName,
			LastName:  auth.DevAuth.LastName,
			Role:      auth.DevAuth.Role,
			Groups:    auth.DevAuth.Groups,
		})
		if err != nil {
			return nil, fmt.Errorf("dev auth provider: %w", err)
		}
		return prov, nil

	case config.AuthModeOAuth:
		oauth := auth.OAuth
		if !oauth.Configured() {
			return nil, fmt.Errorf("oauth mode requires OAUTH_CLIENT_ID, OAUTH_DISCOVERY_URL and OAUTH_REDIRECT_URL "+
				"(client_id_empty=%t discovery_url_empty=%t)", oauth.ClientID == "", oauth.DiscoveryURL == "")
		}
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  oauth.RedirectURL,
			Scope:        oauth.Scope,
			DiscoveryURL: oauth.DiscoveryURL,
			Prompt:       oauth.Prompt,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", auth.Mode)
	}
}

func unavailableAuth(reason error, cfg AuthConfig, logger *slog.Logger) AuthComponents {
	tracker := service.NewUnavailableSessionTracker(reason, logger)
	authSvc := service.NewAuthService(service.AuthServiceOptions{Sessions: tracker, Logger: logger})
	return assemble(tracker, authSvc, cfg, logger)
}

func assemble(tracker *service.SessionTracker, authSvc *service.AuthService, cfg AuthConfig, logger *slog.Logger) AuthComponents {
	var intents ports.NavIntentStore
	if cfg.RedisClient != nil {
		intents = redisadapter.NewNavIntentStore(cfg.RedisClient)
	}
	nav := service.NewNavigator(service.NavigatorOptions{
		Intents: intents,
		TTL:     cfg.Auth.Callback.NavIntentTTL,
		Metrics: cfg.Metrics,
		Logger:  logger,
	})
	callbacks := service.NewCallbackService(service.CallbackServiceOptions{
		Auth:      authSvc,
		Navigator: nav,
		Metrics:   cfg.Metrics,
		Logger:    logger,
		Config: service.CallbackConfig{
			ErrorRedirectDelay:   cfg.Auth.Callback.ErrorRedirectDelay,
			TimeoutRedirectDelay: cfg.Auth.Callback.TimeoutRedirectDelay,
			WaitTimeout:          cfg.Auth.Callback.Wait,
		},
	})
	return AuthComponents{Sessions: tracker, Auth: authSvc, Navigator: nav, Callbacks: callbacks}
}
