package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	sdkauth "github.com/modelcontextprotocol/go-sdk/auth"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/reviewgate/internal/auth"
	"github.com/maraichr/reviewgate/pkg/models"
)

var orgA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")

type fakeReader struct {
	snap    *models.PullRequestSnapshot
	records []models.DeliveryRecord
	org     uuid.UUID
	err     error
}

func (f fakeReader) LoadSnapshot(context.Context, models.Platform, string, int) (models.PullRequestSnapshot, bool, error) {
	if f.err != nil {
		return models.PullRequestSnapshot{}, false, f.err
	}
	if f.snap == nil {
		return models.PullRequestSnapshot{}, false, nil
	}
	return *f.snap, true, nil
}

func (f fakeReader) ListDeliveries(context.Context, models.Platform, string, int) ([]models.DeliveryRecord, error) {
	return f.records, f.err
}

func (f fakeReader) ResolveTenant(context.Context, models.Platform, models.Repository) (models.OrganizationAndTeamData, bool, error) {
	if f.org == uuid.Nil {
		return models.OrganizationAndTeamData{}, false, nil
	}
	return models.OrganizationAndTeamData{OrganizationID: f.org}, true, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleRecords() []models.DeliveryRecord {
	return []models.DeliveryRecord{
		{SuggestionID: "s1", Path: "a.go", Line: 4, Severity: models.SeverityHigh, PriorityStatus: models.PrioritySent, DeliveryStatus: models.DeliverySent},
		{SuggestionID: "s2", Path: "b.go", Line: 9, Severity: models.SeverityLow, PriorityStatus: models.PriorityDiscardedByQuantity},
		{SuggestionID: "s3", Path: "c.go", Line: 2, Severity: models.SeverityHigh, PriorityStatus: models.PrioritySent, DeliveryStatus: models.DeliveryFailedLineMismatch},
	}
}

func deliveriesParams() ListReviewDeliveriesParams {
	return ListReviewDeliveriesParams{Platform: "github", RepositoryID: "42", Number: 7}
}

func TestListReviewDeliveries(t *testing.T) {
	h := NewListReviewDeliveriesHandler(fakeReader{records: sampleRecords()}, discard())

	out, err := h.Handle(context.Background(), deliveriesParams())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	for _, want := range []string{"(3 found)", "a.go:L4", "discarded_by_quantity", "failed_lines_mismatch"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestListReviewDeliveries_StatusFilter(t *testing.T) {
	h := NewListReviewDeliveriesHandler(fakeReader{records: sampleRecords()}, discard())

	params := deliveriesParams()
	params.Status = "discarded_by_quantity"
	out, err := h.Handle(context.Background(), params)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(out, "(1 found)") || strings.Contains(out, "a.go") {
		t.Errorf("filter not applied:\n%s", out)
	}
}

func TestListReviewDeliveries_Empty(t *testing.T) {
	h := NewListReviewDeliveriesHandler(fakeReader{}, discard())
	out, err := h.Handle(context.Background(), deliveriesParams())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.HasPrefix(out, "No deliveries") {
		t.Errorf("got %q", out)
	}
}

func TestListReviewDeliveries_InvalidParams(t *testing.T) {
	h := NewListReviewDeliveriesHandler(fakeReader{}, discard())
	tests := []ListReviewDeliveriesParams{
		{Platform: "svn", RepositoryID: "1", Number: 1},
		{Platform: "github", Number: 1},
		{Platform: "github", RepositoryID: "1"},
	}
	for _, p := range tests {
		if _, err := h.Handle(context.Background(), p); err == nil {
			t.Errorf("expected error for %+v", p)
		}
	}
}

func TestListReviewDeliveries_StoreError(t *testing.T) {
	h := NewListReviewDeliveriesHandler(fakeReader{err: errors.New("db down")}, discard())
	if _, err := h.Handle(context.Background(), deliveriesParams()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAuthorize(t *testing.T) {
	ref := pullRequestRef{platform: models.PlatformGitHub, repositoryID: "42", number: 7}
	reader := fakeReader{org: orgA}

	tests := []struct {
		name      string
		principal *auth.Principal
		wantErr   bool
	}{
		{"no principal", nil, false},
		{"admin", &auth.Principal{Roles: map[string]bool{auth.RoleAdmin: true}}, false},
		{"same org", &auth.Principal{OrganizationID: orgA, Scopes: map[string]bool{auth.ScopeRead: true}}, false},
		{"other org", &auth.Principal{OrganizationID: uuid.New(), Scopes: map[string]bool{auth.ScopeRead: true}}, true},
		{"missing scope", &auth.Principal{OrganizationID: orgA, Scopes: map[string]bool{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.principal != nil {
				ctx = auth.WithPrincipal(ctx, tt.principal)
			}
			err := authorize(ctx, reader, ref)
			if (err != nil) != tt.wantErr {
				t.Errorf("authorize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetPullRequestState(t *testing.T) {
	snap := &models.PullRequestSnapshot{Platform: models.PlatformGitHub, RepositoryID: "42", Number: 7, State: models.PullRequestOpen, HeadSHA: "abc"}
	h := NewGetPullRequestStateHandler(fakeReader{snap: snap}, discard())

	out, err := h.Handle(context.Background(), PullRequestParams{Platform: "github", RepositoryID: "42", Number: 7})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(out, "`abc`") {
		t.Errorf("got %s", out)
	}
}

func TestGetPullRequestState_NotFound(t *testing.T) {
	h := NewGetPullRequestStateHandler(fakeReader{}, discard())
	_, err := h.Handle(context.Background(), PullRequestParams{Platform: "github", RepositoryID: "42", Number: 7})
	if !errors.Is(err, errPullRequestNotFound) {
		t.Errorf("got %v", err)
	}
}

type echoHandler struct{ fail bool }

func (e echoHandler) Handle(ctx context.Context, p PullRequestParams) (string, error) {
	if e.fail {
		return "", errors.New("boom")
	}
	if pr, ok := auth.PrincipalFrom(ctx); ok {
		return pr.Sub, nil
	}
	return "anonymous", nil
}

func TestWrapHandler(t *testing.T) {
	res, _, err := WrapHandler[PullRequestParams](echoHandler{})(context.Background(), nil, nil)
	if err != nil || res.IsError {
		t.Fatalf("unexpected error result: %v %+v", err, res)
	}
	if text := res.Content[0].(*sdkmcp.TextContent).Text; text != "anonymous" {
		t.Errorf("got %q", text)
	}

	res, _, _ = WrapHandler[PullRequestParams](echoHandler{fail: true})(context.Background(), nil, &PullRequestParams{})
	if !res.IsError {
		t.Error("expected IsError for failing handler")
	}
}

func TestWrapHandler_PrincipalFromToken(t *testing.T) {
	req := &sdkmcp.CallToolRequest{Extra: &sdkmcp.RequestExtra{
		TokenInfo: &sdkauth.TokenInfo{Extra: map[string]any{"principal": &auth.Principal{Sub: "agent"}}},
	}}
	res, _, _ := WrapHandler[PullRequestParams](echoHandler{})(context.Background(), req, nil)
	if text := res.Content[0].(*sdkmcp.TextContent).Text; text != "agent" {
		t.Errorf("got %q", text)
	}
}
