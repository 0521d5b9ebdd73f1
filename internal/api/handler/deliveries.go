package handler

import (
	"log/slog"
	"net/http"

	"github.com/maraichr/reviewgate/pkg/apierr"
)

type DeliveryHandler struct {
	logger *slog.Logger
	store  ReviewReader
}

func NewDeliveryHandler(logger *slog.Logger, s ReviewReader) *DeliveryHandler {
	return &DeliveryHandler{logger: logger, store: s}
}

// List handles GET /api/v1/pull-requests/{platform}/{repositoryID}/{number}/deliveries.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	ref, apiErr := parsePullRequestRef(r)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	snap, ok := getSnapshotOr404(w, r, h.logger, h.store, ref)
	if !ok {
		return
	}

	records, err := h.store.ListDeliveries(r.Context(), ref.Platform, ref.RepositoryID, ref.Number)
	if err != nil {
		writeAPIError(w, h.logger, apierr.DeliveryListFailed(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pull_request": snap,
		"deliveries":   records,
	})
}
