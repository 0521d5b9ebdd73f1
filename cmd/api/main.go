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

	"github.com/maraichr/reviewgate/internal/api"
	"github.com/maraichr/reviewgate/internal/auth"
	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/internal/platform/enabled"
	"github.com/maraichr/reviewgate/internal/queue"
	"github.com/maraichr/reviewgate/internal/store"
	"github.com/maraichr/reviewgate/internal/store/postgres"
	vk "github.com/maraichr/reviewgate/internal/store/valkey"
	"github.com/maraichr/reviewgate/internal/webhook"
	"github.com/maraichr/reviewgate/pkg/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	registry, err := enabled.Registry(cfg, logger)
	if err != nil {
		logger.Error("failed to build platform registry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var platforms []models.Platform
	for _, a := range registry.All() {
		platforms = append(platforms, a.Platform())
	}

	deps := api.RouterDeps{
		Pool:       pool,
		Valkey:     vkClient,
		Registry:   registry,
		Acceptor:   webhook.NewAcceptor(platforms...),
		Producer:   queue.NewProducer(vkClient),
		Reviews:    store.New(pool),
		MaxPayload: cfg.Server.MaxPayloadBytes,
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURL == "" {
			logger.Error("AUTH_ENABLED=true but AUTH_ISSUER_URL is empty")
			os.Exit(1)
		}
		verifier, err := auth.NewVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.PublicIssuer, cfg.Auth.Audience)
		if err != nil {
			logger.Error("failed to init OIDC verifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		deps.Auth = auth.RequireAuth(verifier, logger)
		logger.Info("OIDC auth enabled", slog.String("issuer", cfg.Auth.IssuerURL))
	} else {
		deps.Auth = auth.DevModeMiddleware(logger)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(logger, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
