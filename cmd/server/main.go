package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kidpoints/internal/app"
	"kidpoints/internal/config"
	"kidpoints/internal/handlers"
	"kidpoints/internal/logger"
	"kidpoints/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		application.Stop(context.Background())
		return err
	}

	var limiter *security.RateLimiter
	if cfg.RateLimit.Requests > 0 {
		limiter = security.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer limiter.Stop()
	}

	var auth *handlers.AuthHandler
	if application.AccountsEnabled() {
		providers := map[string]handlers.OAuthProvider{}
		if google := handlers.GoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret); google != nil {
			providers[google.Name] = *google
		}
		states := security.NewStateSigner(cfg.Auth.JWTSecret)
		auth = handlers.NewAuthHandler(application, providers, cfg.Auth.OAuthRedirectBaseURL, states, zlog)
	}

	handler := handlers.Routes(
		handlers.NewAPIHandler(application, zlog),
		auth,
		handlers.NewMiddleware(zlog, limiter),
	)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("Server starting", zap.String("addr", addr), zap.Bool("accounts", auth != nil))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			application.Stop(context.Background())
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
	case <-ctx.Done():
	}

	zlog.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	return application.Stop(shutdownCtx)
}
