package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/maraichr/reviewgate/pkg/apierr"
	"github.com/maraichr/reviewgate/pkg/models"
)

// ReviewReader is the read side of the review store.
type ReviewReader interface {
	LoadSnapshot(ctx context.Context, platform models.Platform, repositoryID string, number int) (models.PullRequestSnapshot, bool, error)
	ListDeliveries(ctx context.Context, platform models.Platform, repositoryID string, number int) ([]models.DeliveryRecord, error)
}

// getSnapshotOr404 writes a 404/500 error on failure and reports whether
// the caller may continue.
func getSnapshotOr404(w http.ResponseWriter, r *http.Request, logger *slog.Logger, s ReviewReader, ref pullRequestRef) (models.PullRequestSnapshot, bool) {
	snap, ok, err := s.LoadSnapshot(r.Context(), ref.Platform, ref.RepositoryID, ref.Number)
	if err != nil {
		writeAPIError(w, logger, apierr.InternalError(err))
		return models.PullRequestSnapshot{}, false
	}
	if !ok {
		writeAPIError(w, logger, apierr.PullRequestNotFound())
		return models.PullRequestSnapshot{}, false
	}
	return snap, true
}
