package review

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/maraichr/reviewgate/internal/license"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/internal/suggest"
	"github.com/maraichr/reviewgate/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClient struct {
	mu          sync.Mutex
	files       []models.FileChange
	commits     []models.Commit
	filesErr    error
	commentErrs map[string]error
	comments    []platform.CommentRequest
	general     []string
	reactions   []platform.Reaction
}

func (c *fakeClient) CreateComment(_ context.Context, req platform.CommentRequest) (platform.CommentRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comments = append(c.comments, req)
	if err := c.commentErrs[req.Path]; err != nil {
		return platform.CommentRef{}, err
	}
	return platform.CommentRef{ID: "comment-" + req.Path}, nil
}

func (c *fakeClient) CreateGeneralComment(_ context.Context, _ models.Repository, _ models.PullRequest, body string) (platform.CommentRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.general = append(c.general, body)
	return platform.CommentRef{ID: "general"}, nil
}

func (c *fakeClient) AddReaction(_ context.Context, _ models.Repository, _ models.PullRequest, r platform.Reaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions = append(c.reactions, r)
	return nil
}

func (c *fakeClient) GetCommits(context.Context, models.Repository, models.PullRequest) ([]models.Commit, error) {
	return c.commits, nil
}

func (c *fakeClient) GetFiles(context.Context, models.Repository, models.PullRequest) ([]models.FileChange, error) {
	return c.files, c.filesErr
}

func clientsOf(c platform.Client) ClientFunc {
	return func(models.Platform) (platform.Client, bool) { return c, c != nil }
}

type fakeConfigs struct {
	cfg models.CodeReviewConfig
	ok  bool
	err error
}

func (f fakeConfigs) LoadCodeReviewConfig(context.Context, models.OrganizationAndTeamData, string) (models.CodeReviewConfig, bool, error) {
	return f.cfg, f.ok, f.err
}

type fakeLicenses struct {
	decision  license.Decision
	err       error
	assign    bool
	assignHit int
}

func (f *fakeLicenses) Validate(context.Context, license.Request) (license.Decision, error) {
	return f.decision, f.err
}

func (f *fakeLicenses) AutoAssign(context.Context, license.Request) (bool, error) {
	f.assignHit++
	return f.assign, nil
}

func licensed() *fakeLicenses {
	return &fakeLicenses{decision: license.Decision{Verdict: license.VerdictLicensed}}
}

type fakeGenerator struct {
	resp suggest.Response
	err  error
}

func (g fakeGenerator) Generate(context.Context, suggest.Request) (suggest.Response, error) {
	return g.resp, g.err
}

type fakePersister struct {
	mu       sync.Mutex
	outcomes []models.ReviewOutcome
}

func (p *fakePersister) AggregateAndSave(_ context.Context, out models.ReviewOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, out)
	return nil
}

var tenant = models.OrganizationAndTeamData{OrganizationID: uuid.New(), TeamID: uuid.New()}

func baseContext() RunContext {
	return RunContext{
		RunID:      uuid.New(),
		Tenant:     tenant,
		Platform:   models.PlatformGitHub,
		Repository: models.Repository{ID: "100", Owner: "acme", Name: "api", FullName: "acme/api"},
		PullRequest: &models.PullRequest{
			ID:         "pr-7",
			Number:     7,
			State:      models.PullRequestOpen,
			Author:     models.User{ID: "1", Username: "dev"},
			BaseBranch: "main",
		},
		Config: models.DefaultCodeReviewConfig(9),
		Status: StatusInfo{Status: StatusRunning},
	}
}

const goPatch = "@@ -1,2 +1,4 @@\n package main\n+import \"fmt\"\n+func a() {}\n func main() {}\n"

func suggestion(id string, sev models.Severity, line int) models.CodeSuggestion {
	return models.CodeSuggestion{
		ID:                 id,
		RelevantFile:       "main.go",
		RelevantLinesStart: line,
		RelevantLinesEnd:   line,
		SuggestionContent:  "fix " + id,
		Severity:           sev,
	}
}
