package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth         *service.AuthService
	Callbacks    *service.CallbackService
	Navigator    *service.Navigator
	Pages        *Pages // Optional: defaults to the embedded views
	CookieDomain string
	Logger       *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates and configures a new HTTP router with browser middleware.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pages := services.Pages
	if pages == nil {
		pages = MustNewPages(logger)
	}
	nav := services.Navigator
	if nav == nil {
		nav = service.NewNavigator(service.NavigatorOptions{Logger: logger})
	}
	callbacks := services.Callbacks
	if callbacks == nil {
		callbacks = service.NewCallbackService(service.CallbackServiceOptions{Auth: services.Auth, Navigator: nav, Logger: logger})
	}

	mux := http.NewServeMux()
	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		Callbacks:    callbacks,
		Nav:          nav,
		Pages:        pages,
		CookieDomain: services.CookieDomain,
		Logger:       logger,
	}
	pageHandlers := &PageHandlers{Pages: pages}

	health := healthHandler(services.Auth)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	cfg := routeConfig{
		auth:   services.Auth,
		nav:    nav,
		pages:  pages,
		csrf:   CSRFProtection(services.CookieDomain, logger),
		logger: logger,
	}
	registerAuthRoutes(mux, authHandlers, cfg)
	registerPageRoutes(mux, pageHandlers, cfg)

	return BrowserDetection()(mux)
}

type routeConfig struct {
	auth   SessionReader
	nav    NavigationIntents
	pages  *Pages
	csrf   func(http.Handler) http.Handler
	logger *slog.Logger
}

// protected chains CSRF, authentication, role and onboarding checks around h.
func (cfg routeConfig) protected(h http.HandlerFunc, roles ...domainauth.Role) http.Handler {
	var handler http.Handler = h
	handler = OnboardingGate(cfg.nav, cfg.logger)(handler)
	if len(roles) > 0 {
		handler = RequireRoleBrowser(roles...)(handler)
	}
	return cfg.csrf(RequireAuthBrowser(cfg.auth, cfg.pages)(handler))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, cfg routeConfig) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/callback/token", h.CallbackToken)
	mux.HandleFunc("GET /auth/callback/wait", h.CallbackWait)
	mux.Handle("POST /auth/logout", cfg.csrf(http.HandlerFunc(h.Logout)))
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.Handle("POST /auth/session/refresh", cfg.csrf(RequireAuthBrowser(cfg.auth, cfg.pages)(http.HandlerFunc(h.RefreshSession))))
}

func registerPageRoutes(mux *http.ServeMux, h *PageHandlers, cfg routeConfig) {
	mux.Handle("GET /{$}", OptionalAuth(cfg.auth)(http.HandlerFunc(h.Home)))
	mux.Handle("GET /admin", cfg.protected(h.Dashboard, domainauth.RoleAdmin))
	mux.Handle("GET /teacher", cfg.protected(h.Dashboard, domainauth.RoleTeacher))
	mux.Handle("GET /parent", cfg.protected(h.Dashboard, domainauth.RoleParent))
	mux.Handle("GET "+domainauth.OnboardingRoute, cfg.protected(h.Onboarding, domainauth.RoleParent))
}
