package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkauth "github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/oauthex"

	"github.com/maraichr/reviewgate/internal/auth"
	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/internal/mcp"
	"github.com/maraichr/reviewgate/internal/mcp/tools"
	"github.com/maraichr/reviewgate/internal/store"
	"github.com/maraichr/reviewgate/internal/store/postgres"
)

const version = "1.0.0"

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

	server := mcp.NewServer(version, logger)
	tools.Register(server, store.New(pool), logger)
	sdkHandler := mcp.NewHTTPHandler(server)

	mux := http.NewServeMux()

	var mcpHandler http.Handler
	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURL == "" {
			logger.Error("AUTH_ENABLED=true but AUTH_ISSUER_URL is empty")
			os.Exit(1)
		}
		verifier, err := auth.NewVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.PublicIssuer, cfg.Auth.Audience)
		if err != nil {
			logger.Error("failed to init OIDC verifier for MCP", slog.String("error", err.Error()))
			os.Exit(1)
		}

		resourceMetadataURL := ""
		if cfg.MCP.BaseURL != "" {
			resourceMetadataURL = cfg.MCP.BaseURL + "/.well-known/oauth-protected-resource"

			authServerURL := cfg.Auth.PublicIssuer
			if authServerURL == "" {
				authServerURL = cfg.Auth.IssuerURL
			}

			// RFC 9728 protected resource metadata
			prm := &oauthex.ProtectedResourceMetadata{
				Resource:               cfg.MCP.BaseURL,
				AuthorizationServers:   []string{authServerURL},
				ScopesSupported:        []string{"openid", auth.ScopeRead},
				BearerMethodsSupported: []string{"header"},
				ResourceName:           "reviewgate MCP server",
			}
			mux.Handle("/.well-known/oauth-protected-resource", sdkauth.ProtectedResourceMetadataHandler(prm))
			logger.Info("RFC 9728 metadata endpoint enabled", slog.String("url", resourceMetadataURL))
		}

		mcpHandler = sdkauth.RequireBearerToken(auth.NewMCPTokenVerifier(verifier), &sdkauth.RequireBearerTokenOptions{
			ResourceMetadataURL: resourceMetadataURL,
			Scopes:              []string{auth.ScopeRead},
		})(sdkHandler)
		logger.Info("MCP OIDC auth enabled", slog.String("issuer", cfg.Auth.IssuerURL))
	} else {
		mcpHandler = auth.DevModeMiddleware(logger)(sdkHandler)
	}

	mux.Handle("/mcp", mcpHandler)

	httpServer := &http.Server{Addr: cfg.MCP.Addr, Handler: mux}

	go func() {
		logger.Info("MCP server listening", slog.String("addr", cfg.MCP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP HTTP server error", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	logger.Info("MCP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("MCP HTTP shutdown", slog.String("error", err.Error()))
	}
	logger.Info("MCP server stopped")
}
