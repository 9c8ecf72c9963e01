package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"holdings-server/internal/auth"
	"holdings-server/internal/holdings"
	"holdings-server/internal/metadata"
	"holdings-server/internal/middleware"
	"holdings-server/internal/server"
	serverHandlers "holdings-server/internal/server/handlers"
	"holdings-server/internal/shared/config"
	"holdings-server/internal/shared/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init()

	if err := run(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.GlobalConfig
	log := slog.With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := holdings.OpenBackends(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer backends.Close()

	policy, err := metadata.LoadPolicy(cfg.Holdings.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load unpack policy: %w", err)
	}

	manager := holdings.NewManager(ctx, backends.Factory(), policy, cfg.Holdings, slog.Default())
	defer manager.Close()

	if cfg.Holdings.PolicyFile != "" && cfg.Holdings.WatchPolicy {
		go func() {
			if err := metadata.WatchPolicy(ctx, cfg.Holdings.PolicyFile, slog.Default(), manager.ApplyPolicy); err != nil {
				log.Warn("Unpack policy watcher stopped", "error", err)
			}
		}()
	}

	oauthConfig := auth.InitOAuth(cfg)
	authService := auth.NewService(oauthConfig.EveProvider, cfg.Auth.JWTSecret, cfg.Auth.SessionDuration, slog.Default())
	authService.OnCharacterLogout(manager.Remove)

	checks := make(map[string]serverHandlers.Check)
	for name, check := range backends.Checks() {
		checks[name] = check
	}

	routes := server.NewRoutes(authService, oauthConfig, manager, checks, cfg.Frontend.URL, cfg.Holdings.LiveWriteWindow, slog.Default())
	mux := routes.Setup()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, slog.Default())
	go rateLimiter.Run(ctx)
	cors := middleware.NewCORS(cfg.Frontend, slog.Default())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      cors.Middleware(rateLimiter.Middleware(mux)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Holdings server starting",
		"port", cfg.Server.Port,
		"environment", cfg.Server.Environment,
		"sso_configured", oauthConfig.EveConfigured)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
