package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	apihandler "github.com/maraichr/reviewgate/internal/api/handler"
	apimw "github.com/maraichr/reviewgate/internal/api/middleware"
	"github.com/maraichr/reviewgate/internal/auth"
	"github.com/maraichr/reviewgate/internal/platform"
)

// RouterDeps holds the dependencies of the HTTP ingress.
type RouterDeps struct {
	Pool       *pgxpool.Pool
	Valkey     valkey.Client
	Registry   *platform.Registry
	Acceptor   apihandler.Acceptor
	Producer   apihandler.Enqueuer
	Reviews    apihandler.ReviewReader
	MaxPayload int64
	// Auth authenticates /api/v1. Nil leaves it open.
	Auth func(http.Handler) http.Handler
}

func NewRouter(logger *slog.Logger, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(chimw.Recoverer)

	health := apihandler.NewHealthHandler(deps.Pool, deps.Valkey)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	webhooks := apihandler.NewWebhookHandler(logger, deps.Registry, deps.Acceptor, deps.Producer, deps.MaxPayload)
	r.Post("/webhooks/{platform}", webhooks.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(deps.Auth)
			r.Use(auth.RequireScope(auth.ScopeRead))
		}
		if deps.Reviews != nil {
			deliveries := apihandler.NewDeliveryHandler(logger, deps.Reviews)
			r.Get("/pull-requests/{platform}/{repositoryID}/{number}/deliveries", deliveries.List)
		}
	})

	return r
}
