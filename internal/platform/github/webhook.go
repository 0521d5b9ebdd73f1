package github

import (
	"fmt"
	"net/http"
	"strconv"

	gh "github.com/google/go-github/v68/github"

	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

const (
	eventPullRequest   = "pull_request"
	eventIssueComment  = "issue_comment"
	eventReviewComment = "pull_request_review_comment"
	headerEvent        = "X-GitHub-Event"
	headerSignature    = "X-Hub-Signature-256"
)

func (a *Adapter) EventType(h http.Header, _ []byte) string {
	return h.Get(headerEvent)
}

func (a *Adapter) VerifyWebhook(h http.Header, body []byte) error {
	if a.secret == "" {
		return nil
	}
	sig := h.Get(headerSignature)
	if sig == "" {
		return platform.ErrMissingSignature
	}
	if err := gh.ValidateSignature(sig, body, []byte(a.secret)); err != nil {
		return fmt.Errorf("%w: %v", platform.ErrInvalidSignature, err)
	}
	return nil
}

func (a *Adapter) ParseWebhook(eventType string, body []byte) (models.WebhookEvent, error) {
	ev := models.WebhookEvent{Platform: models.PlatformGitHub, EventType: eventType, Action: models.ActionUnknown}

	switch eventType {
	case eventPullRequest, eventIssueComment, eventReviewComment:
	default:
		return ev, nil
	}

	parsed, err := gh.ParseWebHook(eventType, body)
	if err != nil {
		return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
	}

	switch e := parsed.(type) {
	case *gh.PullRequestEvent:
		ev.Action = pullRequestAction(e.GetAction())
		ev.Repository = repository(e.GetRepo())
		pr := pullRequest(e.GetPullRequest())
		ev.PullRequest = &pr
		ev.Sender = user(e.GetSender())

	case *gh.IssueCommentEvent:
		if !e.GetIssue().IsPullRequest() {
			return ev, nil
		}
		ev.Action = commentAction(e.GetAction())
		ev.Repository = repository(e.GetRepo())
		issue := e.GetIssue()
		ev.PullRequest = &models.PullRequest{
			ID:     strconv.FormatInt(issue.GetID(), 10),
			Number: issue.GetNumber(),
			Title:  issue.GetTitle(),
			State:  issueState(issue),
			Author: user(issue.GetUser()),
			URL:    issue.GetHTMLURL(),
		}
		ev.Comment = &models.Comment{
			ID:     strconv.FormatInt(e.GetComment().GetID(), 10),
			Body:   e.GetComment().GetBody(),
			Author: user(e.GetComment().GetUser()),
		}
		ev.Sender = user(e.GetSender())

	case *gh.PullRequestReviewCommentEvent:
		ev.Action = commentAction(e.GetAction())
		ev.Repository = repository(e.GetRepo())
		pr := pullRequest(e.GetPullRequest())
		ev.PullRequest = &pr
		ev.Comment = &models.Comment{
			ID:       strconv.FormatInt(e.GetComment().GetID(), 10),
			Body:     e.GetComment().GetBody(),
			Author:   user(e.GetComment().GetUser()),
			ThreadID: strconv.FormatInt(e.GetComment().GetInReplyTo(), 10),
		}
		ev.Sender = user(e.GetSender())
	}
	return ev, nil
}

func pullRequestAction(action string) models.Action {
	switch action {
	case "opened":
		return models.ActionOpened
	case "synchronize":
		return models.ActionSynchronized
	case "reopened":
		return models.ActionReopened
	case "closed":
		return models.ActionClosed
	case "ready_for_review":
		return models.ActionReadyForReview
	case "edited":
		return models.ActionUpdated
	}
	return models.ActionUnknown
}

func commentAction(action string) models.Action {
	switch action {
	case "created":
		return models.ActionCommentCreated
	case "edited":
		return models.ActionCommentEdited
	case "deleted":
		return models.ActionCommentDeleted
	}
	return models.ActionUnknown
}

func repository(r *gh.Repository) models.Repository {
	return models.Repository{
		ID:            strconv.FormatInt(r.GetID(), 10),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Owner:         r.GetOwner().GetLogin(),
		URL:           r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
	}
}

func pullRequest(p *gh.PullRequest) models.PullRequest {
	state := models.PullRequestOpen
	switch {
	case p.GetMerged():
		state = models.PullRequestMerged
	case p.GetState() == "closed":
		state = models.PullRequestClosed
	case p.GetLocked():
		state = models.PullRequestLocked
	}
	return models.PullRequest{
		ID:         strconv.FormatInt(p.GetID(), 10),
		Number:     p.GetNumber(),
		Title:      p.GetTitle(),
		State:      state,
		IsDraft:    p.GetDraft(),
		Author:     user(p.GetUser()),
		HeadSHA:    p.GetHead().GetSHA(),
		HeadBranch: p.GetHead().GetRef(),
		BaseBranch: p.GetBase().GetRef(),
		URL:        p.GetHTMLURL(),
		UpdatedAt:  p.GetUpdatedAt().Time,
	}
}

func issueState(i *gh.Issue) models.PullRequestState {
	if i.GetLocked() {
		return models.PullRequestLocked
	}
	if i.GetState() == "closed" {
		return models.PullRequestClosed
	}
	return models.PullRequestOpen
}

func user(u *gh.User) models.User {
	return models.User{
		ID:       strconv.FormatInt(u.GetID(), 10),
		Username: u.GetLogin(),
		Name:     u.GetName(),
		Email:    u.GetEmail(),
		IsBot:    u.GetType() == "Bot",
	}
}
