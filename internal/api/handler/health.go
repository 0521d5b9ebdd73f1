package handler

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	valkeystore "github.com/maraichr/reviewgate/internal/store/valkey"
	"github.com/maraichr/reviewgate/pkg/apierr"
)

type HealthHandler struct {
	pool   *pgxpool.Pool
	valkey valkey.Client
}

func NewHealthHandler(pool *pgxpool.Pool, vk valkey.Client) *HealthHandler {
	return &HealthHandler{pool: pool, valkey: vk}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			writeAPIError(w, nil, apierr.DatabaseNotReady())
			return
		}
	}
	if h.valkey != nil {
		if err := valkeystore.Ping(r.Context(), h.valkey); err != nil {
			writeAPIError(w, nil, apierr.QueueNotReady())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
