package tools

import (
	"context"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/reviewgate/internal/auth"
	"github.com/maraichr/reviewgate/pkg/models"
)

// ToolHandler is the interface that all tool handlers implement.
type ToolHandler[P any] interface {
	Handle(ctx context.Context, params P) (string, error)
}

// WrapHandler adapts a ToolHandler into the SDK's AddTool callback.
// It handles nil params by using a zero value and maps errors to CallToolResult.
func WrapHandler[P any](h ToolHandler[P]) func(context.Context, *sdkmcp.CallToolRequest, *P) (*sdkmcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, params *P) (*sdkmcp.CallToolResult, any, error) {
		if params == nil {
			params = new(P)
		}
		if req != nil && req.Extra != nil {
			if p, ok := auth.PrincipalFromTokenInfo(req.Extra.TokenInfo); ok {
				ctx = auth.WithPrincipal(ctx, p)
			}
		}
		result, err := h.Handle(ctx, *params)
		if err != nil {
			return &sdkmcp.CallToolResult{
				IsError: true,
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}},
			}, nil, nil
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: result}},
		}, nil, nil
	}
}

// ReviewReader is the read side of the review store the tools query.
type ReviewReader interface {
	LoadSnapshot(ctx context.Context, platform models.Platform, repositoryID string, number int) (models.PullRequestSnapshot, bool, error)
	ListDeliveries(ctx context.Context, platform models.Platform, repositoryID string, number int) ([]models.DeliveryRecord, error)
	ResolveTenant(ctx context.Context, platform models.Platform, repo models.Repository) (models.OrganizationAndTeamData, bool, error)
}

var (
	errPullRequestNotFound = errors.New("pull request not found")
	errForbidden           = errors.New("repository belongs to another organization")
)

// PullRequestParams identifies one pull request.
type PullRequestParams struct {
	Platform     string `json:"platform"`
	RepositoryID string `json:"repository_id"`
	Number       int    `json:"number"`
}

type pullRequestRef struct {
	platform     models.Platform
	repositoryID string
	number       int
}

func (p PullRequestParams) ref() (pullRequestRef, error) {
	platform, err := models.ParsePlatform(p.Platform)
	if err != nil {
		return pullRequestRef{}, err
	}
	if p.RepositoryID == "" {
		return pullRequestRef{}, fmt.Errorf("repository_id is required")
	}
	if p.Number <= 0 {
		return pullRequestRef{}, fmt.Errorf("number must be positive")
	}
	return pullRequestRef{platform: platform, repositoryID: p.RepositoryID, number: p.Number}, nil
}

// authorize resolves the pull request's organization and checks it against
// the caller. Admins and unauthenticated local calls see every repository.
func authorize(ctx context.Context, r ReviewReader, ref pullRequestRef) error {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok || p.IsAdmin() {
		return nil
	}
	if !p.HasAnyScope(auth.ScopeRead, auth.ScopeAdmin) {
		return fmt.Errorf("missing scope %s", auth.ScopeRead)
	}
	tenant, found, err := r.ResolveTenant(ctx, ref.platform, models.Repository{ID: ref.repositoryID})
	if err != nil {
		return fmt.Errorf("resolve tenant: %w", err)
	}
	if !found || tenant.OrganizationID != p.OrganizationID {
		return errForbidden
	}
	return nil
}
