package forgejo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

const (
	eventPullRequest  = "pull_request"
	eventIssueComment = "issue_comment"
)

// EventType prefers the Forgejo header and falls back to the Gitea one.
func (a *Adapter) EventType(h http.Header, _ []byte) string {
	if e := h.Get("X-Forgejo-Event"); e != "" {
		return e
	}
	return h.Get("X-Gitea-Event")
}

func (a *Adapter) VerifyWebhook(h http.Header, body []byte) error {
	sig := h.Get("X-Forgejo-Signature")
	if sig == "" {
		sig = h.Get("X-Gitea-Signature")
	}
	return platform.VerifyHMACSHA256(a.secret, body, sig)
}

type hookUser struct {
	ID       int64  `json:"id"`
	Login    string `json:"login"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type hookRepo struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	FullName      string   `json:"full_name"`
	Owner         hookUser `json:"owner"`
	HTMLURL       string   `json:"html_url"`
	DefaultBranch string   `json:"default_branch"`
}

type hookBranch struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type hookPullRequest struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Merged    bool       `json:"merged"`
	Draft     bool       `json:"draft"`
	User      hookUser   `json:"user"`
	Head      hookBranch `json:"head"`
	Base      hookBranch `json:"base"`
	HTMLURL   string     `json:"html_url"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type hookPayload struct {
	Action      string           `json:"action"`
	Number      int              `json:"number"`
	PullRequest *hookPullRequest `json:"pull_request"`
	Repository  hookRepo         `json:"repository"`
	Sender      hookUser         `json:"sender"`
	IsPull      bool             `json:"is_pull"`
	Issue       *struct {
		ID     int64    `json:"id"`
		Number int      `json:"number"`
		Title  string   `json:"title"`
		State  string   `json:"state"`
		User   hookUser `json:"user"`
	} `json:"issue"`
	Comment *struct {
		ID   int64    `json:"id"`
		Body string   `json:"body"`
		User hookUser `json:"user"`
	} `json:"comment"`
}

func (a *Adapter) ParseWebhook(eventType string, body []byte) (models.WebhookEvent, error) {
	ev := models.WebhookEvent{Platform: models.PlatformForgejo, EventType: eventType, Action: models.ActionUnknown}
	if eventType != eventPullRequest && eventType != eventIssueComment {
		return ev, nil
	}

	var p hookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
	}
	ev.Repository = models.Repository{
		ID:            strconv.FormatInt(p.Repository.ID, 10),
		Name:          p.Repository.Name,
		FullName:      p.Repository.FullName,
		Owner:         p.Repository.Owner.Login,
		URL:           p.Repository.HTMLURL,
		DefaultBranch: p.Repository.DefaultBranch,
	}
	ev.Sender = user(p.Sender)

	switch eventType {
	case eventPullRequest:
		if p.PullRequest == nil {
			return ev, fmt.Errorf("%w: missing pull_request", platform.ErrInvalidPayload)
		}
		pr := pullRequest(*p.PullRequest)
		ev.PullRequest = &pr
		ev.Action = pullRequestAction(p.Action)

	case eventIssueComment:
		if !p.IsPull || p.Issue == nil || p.Comment == nil {
			return ev, nil
		}
		if p.PullRequest != nil {
			pr := pullRequest(*p.PullRequest)
			ev.PullRequest = &pr
		} else {
			state := models.PullRequestOpen
			if p.Issue.State == "closed" {
				state = models.PullRequestClosed
			}
			ev.PullRequest = &models.PullRequest{
				ID:     strconv.FormatInt(p.Issue.ID, 10),
				Number: p.Issue.Number,
				Title:  p.Issue.Title,
				State:  state,
				Author: user(p.Issue.User),
			}
		}
		ev.Comment = &models.Comment{
			ID:     strconv.FormatInt(p.Comment.ID, 10),
			Body:   p.Comment.Body,
			Author: user(p.Comment.User),
		}
		switch p.Action {
		case "created":
			ev.Action = models.ActionCommentCreated
		case "edited":
			ev.Action = models.ActionCommentEdited
		case "deleted":
			ev.Action = models.ActionCommentDeleted
		}
	}
	return ev, nil
}

func pullRequestAction(action string) models.Action {
	switch action {
	case "opened":
		return models.ActionOpened
	case "synchronized":
		return models.ActionSynchronized
	case "reopened":
		return models.ActionReopened
	case "closed":
		return models.ActionClosed
	case "edited":
		return models.ActionUpdated
	}
	return models.ActionUnknown
}

func pullRequest(p hookPullRequest) models.PullRequest {
	state := models.PullRequestOpen
	switch {
	case p.Merged:
		state = models.PullRequestMerged
	case p.State == "closed":
		state = models.PullRequestClosed
	}
	return models.PullRequest{
		ID:         strconv.FormatInt(p.ID, 10),
		Number:     p.Number,
		Title:      p.Title,
		State:      state,
		IsDraft:    p.Draft,
		Author:     user(p.User),
		HeadSHA:    p.Head.SHA,
		HeadBranch: p.Head.Ref,
		BaseBranch: p.Base.Ref,
		URL:        p.HTMLURL,
		UpdatedAt:  p.UpdatedAt,
	}
}

func user(u hookUser) models.User {
	return models.User{
		ID:       strconv.FormatInt(u.ID, 10),
		Username: u.Login,
		Name:     u.FullName,
		Email:    u.Email,
	}
}
