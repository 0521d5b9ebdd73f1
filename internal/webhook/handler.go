// Package webhook routes normalized platform events to the review pipeline.
// It suppresses duplicate deliveries and decides whether an event should
// start a review or only update the stored pull request state.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/maraichr/reviewgate/internal/review"
	"github.com/maraichr/reviewgate/pkg/models"
)

var (
	// ErrIgnored marks an event that needs no processing.
	ErrIgnored = errors.New("event ignored")

	// ErrUnsupportedPlatform is returned for events of a platform with no
	// registered handler.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

type OutcomeStatus string

const (
	OutcomeIgnored    OutcomeStatus = "ignored"
	OutcomeDuplicate  OutcomeStatus = "duplicate"
	OutcomeSaved      OutcomeStatus = "saved"
	OutcomeSuppressed OutcomeStatus = "suppressed"
	OutcomeTriggered  OutcomeStatus = "triggered"
)

// Outcome reports what handling an event did.
type Outcome struct {
	Status    OutcomeStatus
	Reason    string
	RunID     uuid.UUID
	RunStatus review.Status
}

type TenantResolver interface {
	ResolveTenant(ctx context.Context, platform models.Platform, repo models.Repository) (models.OrganizationAndTeamData, bool, error)
}

type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, platform models.Platform, repositoryID string, number int) (models.PullRequestSnapshot, bool, error)
	SavePullRequestState(ctx context.Context, platform models.Platform, repo models.Repository, pr models.PullRequest, tenant *models.OrganizationAndTeamData, commits []models.Commit) error
}

type ReviewRunner interface {
	Run(ctx context.Context, t review.Trigger) review.RunContext
}

// Handler owns the events of one platform.
type Handler interface {
	Platform() models.Platform
	CanHandle(ev models.WebhookEvent) bool
	Execute(ctx context.Context, ev models.WebhookEvent) (Outcome, error)
}

// Rules are the per-platform dispatch allow-lists.
type Rules struct {
	PullRequestActions []models.Action
	CommentActions     []models.Action
	// HistoryChecked actions trigger only when the head commit is not yet
	// in the stored commit history.
	HistoryChecked []models.Action
}

// PlatformRules is the lookup table of dispatch rules by platform.
var PlatformRules = map[models.Platform]Rules{
	models.PlatformGitHub: {
		PullRequestActions: []models.Action{models.ActionOpened, models.ActionSynchronized, models.ActionReopened, models.ActionClosed, models.ActionReadyForReview},
		CommentActions:     []models.Action{models.ActionCommentCreated},
	},
	models.PlatformGitLab: {
		PullRequestActions: []models.Action{models.ActionOpened, models.ActionSynchronized, models.ActionReopened, models.ActionClosed, models.ActionReadyForReview, models.ActionUpdated},
		CommentActions:     []models.Action{models.ActionCommentCreated},
		HistoryChecked:     []models.Action{models.ActionUpdated},
	},
	models.PlatformBitbucket: {
		PullRequestActions: []models.Action{models.ActionOpened, models.ActionSynchronized, models.ActionClosed},
		CommentActions:     []models.Action{models.ActionCommentCreated},
		HistoryChecked:     []models.Action{models.ActionSynchronized},
	},
	models.PlatformAzure: {
		PullRequestActions: []models.Action{models.ActionOpened, models.ActionUpdated, models.ActionClosed},
		CommentActions:     []models.Action{models.ActionCommentCreated},
		HistoryChecked:     []models.Action{models.ActionUpdated},
	},
	models.PlatformForgejo: {
		PullRequestActions: []models.Action{models.ActionOpened, models.ActionSynchronized, models.ActionReopened, models.ActionClosed, models.ActionUpdated},
		CommentActions:     []models.Action{models.ActionCommentCreated},
		HistoryChecked:     []models.Action{models.ActionUpdated},
	},
}

type HandlerDeps struct {
	Tenants     TenantResolver
	Snapshots   SnapshotStore
	Runner      ReviewRunner
	Clients     review.ClientFunc
	BotMention  string
	BotUsername string
	Logger      *slog.Logger
}

// PlatformHandler applies one platform's Rules.
type PlatformHandler struct {
	platform models.Platform
	rules    Rules
	deps     HandlerDeps
}

func NewPlatformHandler(p models.Platform, deps HandlerDeps) *PlatformHandler {
	return &PlatformHandler{platform: p, rules: PlatformRules[p], deps: deps}
}

func (h *PlatformHandler) Platform() models.Platform { return h.platform }

func (h *PlatformHandler) CanHandle(ev models.WebhookEvent) bool {
	if ev.Platform != h.platform || ev.PullRequest == nil {
		return false
	}
	if ev.Action.IsCommentAction() {
		return ev.Comment != nil && slices.Contains(h.rules.CommentActions, ev.Action)
	}
	return slices.Contains(h.rules.PullRequestActions, ev.Action)
}

func (h *PlatformHandler) Execute(ctx context.Context, ev models.WebhookEvent) (Outcome, error) {
	tenant, ok, err := h.deps.Tenants.ResolveTenant(ctx, ev.Platform, ev.Repository)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{}, fmt.Errorf("repository %s has no integration: %w", ev.Repository.FullName, ErrIgnored)
	}

	if ev.Action.IsCommentAction() {
		return h.handleComment(ctx, ev, tenant)
	}
	return h.handlePullRequest(ctx, ev, tenant)
}

type decision struct {
	trigger bool
	reason  string
	commits []models.Commit
}

func (h *PlatformHandler) handlePullRequest(ctx context.Context, ev models.WebhookEvent, tenant models.OrganizationAndTeamData) (Outcome, error) {
	pr := *ev.PullRequest
	d, err := h.shouldTrigger(ctx, ev, &pr)
	if err != nil {
		return Outcome{}, err
	}

	if err := h.deps.Snapshots.SavePullRequestState(ctx, ev.Platform, ev.Repository, pr, &tenant, d.commits); err != nil {
		h.deps.Logger.Warn("save pull request state failed",
			slog.String("platform", string(ev.Platform)),
			slog.Int("pull_request", pr.Number),
			slog.String("error", err.Error()))
	}

	if !d.trigger {
		status := OutcomeSuppressed
		if ev.Action == models.ActionClosed || pr.State.IsTerminal() {
			status = OutcomeSaved
		}
		return Outcome{Status: status, Reason: d.reason}, nil
	}

	return h.run(ctx, ev, tenant, pr, string(ev.Action), false), nil
}

// shouldTrigger may fill pr.HeadSHA from the fetched commit list.
func (h *PlatformHandler) shouldTrigger(ctx context.Context, ev models.WebhookEvent, pr *models.PullRequest) (decision, error) {
	d := decision{}
	if pr.HeadSHA != "" {
		d.commits = []models.Commit{{SHA: pr.HeadSHA}}
	}

	switch {
	case ev.Action == models.ActionClosed || pr.State.IsTerminal():
		d.reason = "pull request is " + string(pr.State)
		return d, nil
	case pr.IsDraft:
		d.reason = "pull request is a draft"
		return d, nil
	case ev.Action == models.ActionReadyForReview:
		d.trigger, d.reason = true, "ready for review"
		return d, nil
	case !slices.Contains(h.rules.HistoryChecked, ev.Action):
		d.trigger, d.reason = true, string(ev.Action)
		return d, nil
	}

	snap, ok, err := h.deps.Snapshots.LoadSnapshot(ctx, ev.Platform, ev.Repository.ID, pr.Number)
	if err != nil {
		return d, err
	}
	if !ok {
		d.trigger, d.reason = true, "first event for pull request"
		return d, nil
	}
	if snap.IsDraft {
		d.trigger, d.reason = true, "draft marked ready"
		return d, nil
	}

	if client, ok := h.deps.Clients(ev.Platform); ok {
		commits, err := client.GetCommits(ctx, ev.Repository, *pr)
		if err != nil {
			return d, fmt.Errorf("get commits: %w", err)
		}
		if len(commits) > 0 {
			d.commits = commits
			if pr.HeadSHA == "" {
				pr.HeadSHA = commits[len(commits)-1].SHA
			}
		}
	}

	if pr.HeadSHA == "" || snap.HasCommit(pr.HeadSHA) {
		d.reason = "head commit already seen"
		return d, nil
	}
	d.trigger, d.reason = true, "new commits"
	return d, nil
}

func (h *PlatformHandler) handleComment(ctx context.Context, ev models.WebhookEvent, tenant models.OrganizationAndTeamData) (Outcome, error) {
	c := ev.Comment
	switch {
	case ev.Sender.IsBot, c.Author.IsBot:
		return Outcome{Status: OutcomeIgnored, Reason: "bot comment"}, nil
	case h.deps.BotUsername != "" && strings.EqualFold(c.Author.Username, h.deps.BotUsername):
		return Outcome{Status: OutcomeIgnored, Reason: "own comment"}, nil
	case review.HasStatusMarker(c.Body):
		return Outcome{Status: OutcomeIgnored, Reason: "status comment"}, nil
	}

	cmd, ok := ParseCommand(c.Body, h.deps.BotMention)
	if !ok {
		return Outcome{Status: OutcomeIgnored, Reason: "no command"}, nil
	}

	h.deps.Logger.Info("review command received",
		slog.String("platform", string(ev.Platform)),
		slog.String("repository", ev.Repository.FullName),
		slog.Int("pull_request", ev.PullRequest.Number),
		slog.String("command", string(cmd)),
		slog.String("user", c.Author.Username))
	return h.run(ctx, ev, tenant, *ev.PullRequest, "command:"+string(cmd), true), nil
}

func (h *PlatformHandler) run(ctx context.Context, ev models.WebhookEvent, tenant models.OrganizationAndTeamData, pr models.PullRequest, reason string, forced bool) Outcome {
	sender := ev.Sender
	if ev.Comment != nil && sender.Username == "" {
		sender = ev.Comment.Author
	}
	rc := h.deps.Runner.Run(ctx, review.Trigger{
		Tenant:      tenant,
		Platform:    ev.Platform,
		Repository:  ev.Repository,
		PullRequest: pr,
		Sender:      sender,
		Reason:      reason,
		Forced:      forced,
	})
	return Outcome{Status: OutcomeTriggered, Reason: reason, RunID: rc.RunID, RunStatus: rc.Status.Status}
}
