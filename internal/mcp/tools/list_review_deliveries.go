package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/reviewgate/internal/mcp"
	"github.com/maraichr/reviewgate/pkg/models"
)

// ListReviewDeliveriesParams are the parameters for the list_review_deliveries tool.
type ListReviewDeliveriesParams struct {
	Platform          string `json:"platform"`
	RepositoryID      string `json:"repository_id"`
	Number            int    `json:"number"`
	Status            string `json:"status,omitempty"`
	Verbosity         string `json:"verbosity,omitempty"`
	MaxResponseTokens int    `json:"max_response_tokens,omitempty"`
}

// ListReviewDeliveriesHandler implements the list_review_deliveries MCP tool.
type ListReviewDeliveriesHandler struct {
	store  ReviewReader
	logger *slog.Logger
}

func NewListReviewDeliveriesHandler(s ReviewReader, logger *slog.Logger) *ListReviewDeliveriesHandler {
	return &ListReviewDeliveriesHandler{store: s, logger: logger}
}

// Handle lists every persisted comment result and discarded suggestion for
// a pull request, newest run first.
func (h *ListReviewDeliveriesHandler) Handle(ctx context.Context, params ListReviewDeliveriesParams) (string, error) {
	ref, err := PullRequestParams{Platform: params.Platform, RepositoryID: params.RepositoryID, Number: params.Number}.ref()
	if err != nil {
		return "", err
	}
	if err := authorize(ctx, h.store, ref); err != nil {
		return "", err
	}

	records, err := h.store.ListDeliveries(ctx, ref.platform, ref.repositoryID, ref.number)
	if err != nil {
		return "", fmt.Errorf("list deliveries: %w", err)
	}
	if params.Status != "" {
		records = filterByStatus(records, params.Status)
	}
	if len(records) == 0 {
		return "No deliveries recorded for this pull request.", nil
	}

	verbosity := mcp.ParseVerbosity(params.Verbosity)
	rb := mcp.NewResponseBuilder(params.MaxResponseTokens)
	rb.AddHeader(fmt.Sprintf("**Deliveries** for %s #%d (%d found)", ref.platform, ref.number, len(records)))
	for _, rec := range records {
		if !rb.AddItem(mcp.FormatDelivery(rec, verbosity)) {
			break
		}
	}

	h.logger.Debug("listed deliveries",
		slog.String("platform", string(ref.platform)),
		slog.String("repository", ref.repositoryID),
		slog.Int("pull_request", ref.number),
		slog.Int("count", len(records)))
	return rb.Finalize(len(records)), nil
}

// filterByStatus matches either the delivery outcome or the priority status,
// so "sent", "failed_lines_mismatch" and "discarded_by_quantity" all work.
func filterByStatus(records []models.DeliveryRecord, status string) []models.DeliveryRecord {
	out := make([]models.DeliveryRecord, 0, len(records))
	for _, rec := range records {
		if string(rec.DeliveryStatus) == status || string(rec.PriorityStatus) == status {
			out = append(out, rec)
		}
	}
	return out
}
