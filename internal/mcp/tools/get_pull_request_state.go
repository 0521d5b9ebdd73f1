package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/reviewgate/internal/mcp"
)

// GetPullRequestStateHandler implements the get_pull_request_state MCP tool.
type GetPullRequestStateHandler struct {
	store  ReviewReader
	logger *slog.Logger
}

func NewGetPullRequestStateHandler(s ReviewReader, logger *slog.Logger) *GetPullRequestStateHandler {
	return &GetPullRequestStateHandler{store: s, logger: logger}
}

// Handle returns the stored snapshot used for commit-history trigger checks.
func (h *GetPullRequestStateHandler) Handle(ctx context.Context, params PullRequestParams) (string, error) {
	ref, err := params.ref()
	if err != nil {
		return "", err
	}
	if err := authorize(ctx, h.store, ref); err != nil {
		return "", err
	}

	snap, found, err := h.store.LoadSnapshot(ctx, ref.platform, ref.repositoryID, ref.number)
	if err != nil {
		return "", fmt.Errorf("load pull request: %w", err)
	}
	if !found {
		return "", errPullRequestNotFound
	}
	return mcp.FormatSnapshot(snap), nil
}
