package tools

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register adds every review tool to s.
func Register(s *sdkmcp.Server, store ReviewReader, logger *slog.Logger) {
	sdkmcp.AddTool(s, &sdkmcp.Tool{
		Name:        "list_review_deliveries",
		Description: "List the inline comments delivered for a pull request, including fallbacks, failures and suggestions discarded before delivery. Filter with status (sent, replaced, failed, failed_lines_mismatch, discarded_by_quantity, ...).",
	}, WrapHandler[ListReviewDeliveriesParams](NewListReviewDeliveriesHandler(store, logger)))

	sdkmcp.AddTool(s, &sdkmcp.Tool{
		Name:        "get_pull_request_state",
		Description: "Get the stored state of a pull request: open/closed, draft flag, head commit and the number of commits already reviewed.",
	}, WrapHandler[PullRequestParams](NewGetPullRequestStateHandler(store, logger)))
}
