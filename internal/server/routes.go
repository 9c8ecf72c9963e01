package server

import (
	"log/slog"
	"net/http"
	"time"

	"holdings-server/internal/auth"
	authHandlers "holdings-server/internal/auth/handlers"
	"holdings-server/internal/holdings"
	holdingsHandlers "holdings-server/internal/holdings/handlers"
	"holdings-server/internal/metrics"
	"holdings-server/internal/middleware"
	serverHandlers "holdings-server/internal/server/handlers"
)

type Routes struct {
	authService *auth.Service
	oauthConfig *auth.OAuthConfig
	manager     *holdings.Manager
	checks      map[string]serverHandlers.Check
	frontendURL string
	liveWindow  time.Duration
	logger      *slog.Logger
}

func NewRoutes(
	authService *auth.Service,
	oauthConfig *auth.OAuthConfig,
	manager *holdings.Manager,
	checks map[string]serverHandlers.Check,
	frontendURL string,
	liveWindow time.Duration,
	logger *slog.Logger,
) *Routes {
	return &Routes{
		authService: authService,
		oauthConfig: oauthConfig,
		manager:     manager,
		checks:      checks,
		frontendURL: frontendURL,
		liveWindow:  liveWindow,
		logger:      logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := r.logger.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.checks)
	eveAuthHandler := authHandlers.NewEveAuthHandler(r.authService, r.frontendURL, r.oauthConfig.EveConfigured, r.logger)
	holdingsHandler := holdingsHandlers.NewHoldingsHandler(r.manager, r.logger)
	liveHandler := holdingsHandlers.NewLiveHandler(holdingsHandler, r.frontendURL, r.liveWindow, r.logger)

	authenticated := middleware.SessionMiddleware(r.authService, r.logger)

	// Public endpoints
	mux.Handle("GET /api/server/health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	// Protected endpoints
	mux.Handle("/api/holdings/load", authenticated(http.HandlerFunc(holdingsHandler.Load)))
	mux.Handle("GET /api/holdings/status", authenticated(http.HandlerFunc(holdingsHandler.Status)))
	mux.Handle("GET /api/holdings/roots", authenticated(http.HandlerFunc(holdingsHandler.Roots)))
	mux.Handle("GET /api/holdings/locations/{key}", authenticated(http.HandlerFunc(holdingsHandler.Location)))
	mux.Handle("GET /api/holdings/locations/{key}/route", authenticated(http.HandlerFunc(holdingsHandler.Route)))
	mux.Handle("GET /api/holdings/locations/{key}/cargo", authenticated(http.HandlerFunc(holdingsHandler.Cargo)))
	mux.Handle("GET /api/holdings/locations/{key}/containers", authenticated(http.HandlerFunc(holdingsHandler.Containers)))
	mux.Handle("GET /api/holdings/locations/{key}/live", authenticated(liveHandler))
	mux.Handle("GET /auth/me", authenticated(http.HandlerFunc(eveAuthHandler.HandleMe)))

	// OAuth endpoints
	mux.HandleFunc("GET /auth/eve", eveAuthHandler.HandleAuth)
	mux.HandleFunc("GET /auth/eve/callback", eveAuthHandler.HandleCallback)
	mux.HandleFunc("POST /auth/logout", eveAuthHandler.HandleLogout)

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/metrics"},
		"protected_endpoints", []string{"/api/holdings/load", "/api/holdings/status", "/api/holdings/roots", "/api/holdings/locations/{key}", "/auth/me"},
		"auth_endpoints", []string{"/auth/eve", "/auth/eve/callback", "/auth/logout"},
	)

	return mux
}
