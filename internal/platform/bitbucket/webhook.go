package bitbucket

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
	headerEvent     = "X-Event-Key"
	headerSignature = "X-Hub-Signature"
)

func (a *Adapter) EventType(h http.Header, _ []byte) string {
	return h.Get(headerEvent)
}

func (a *Adapter) VerifyWebhook(h http.Header, body []byte) error {
	return platform.VerifyHMACSHA256(a.secret, body, h.Get(headerSignature))
}

type account struct {
	UUID        string `json:"uuid"`
	AccountID   string `json:"account_id"`
	Nickname    string `json:"nickname"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

type ref struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
	Commit struct {
		Hash string `json:"hash"`
	} `json:"commit"`
}

type link struct {
	Href string `json:"href"`
}

type hookPayload struct {
	PullRequest *struct {
		ID          int       `json:"id"`
		Title       string    `json:"title"`
		State       string    `json:"state"`
		Draft       bool      `json:"draft"`
		Author      account   `json:"author"`
		Source      ref       `json:"source"`
		Destination ref       `json:"destination"`
		UpdatedOn   time.Time `json:"updated_on"`
		Links       struct {
			HTML link `json:"html"`
		} `json:"links"`
	} `json:"pullrequest"`
	Repository struct {
		UUID      string `json:"uuid"`
		Name      string `json:"name"`
		FullName  string `json:"full_name"`
		Workspace struct {
			Slug string `json:"slug"`
		} `json:"workspace"`
		Links struct {
			HTML link `json:"html"`
		} `json:"links"`
		MainBranch struct {
			Name string `json:"name"`
		} `json:"mainbranch"`
	} `json:"repository"`
	Actor   account `json:"actor"`
	Comment *struct {
		ID      int64   `json:"id"`
		Content content `json:"content"`
		User    account `json:"user"`
		Parent  *struct {
			ID int64 `json:"id"`
		} `json:"parent"`
	} `json:"comment"`
}

var actions = map[string]models.Action{
	"pullrequest:created":         models.ActionOpened,
	"pullrequest:updated":         models.ActionSynchronized,
	"pullrequest:fulfilled":       models.ActionClosed,
	"pullrequest:rejected":        models.ActionClosed,
	"pullrequest:comment_created": models.ActionCommentCreated,
	"pullrequest:comment_updated": models.ActionCommentEdited,
	"pullrequest:comment_deleted": models.ActionCommentDeleted,
}

func (a *Adapter) ParseWebhook(eventType string, body []byte) (models.WebhookEvent, error) {
	ev := models.WebhookEvent{Platform: models.PlatformBitbucket, EventType: eventType, Action: models.ActionUnknown}
	action, ok := actions[eventType]
	if !ok {
		return ev, nil
	}

	var p hookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
	}
	if p.PullRequest == nil {
		return ev, fmt.Errorf("%w: missing pullrequest", platform.ErrInvalidPayload)
	}

	ev.Action = action
	ev.Sender = user(p.Actor)
	ev.Repository = models.Repository{
		ID:            p.Repository.UUID,
		Name:          repoSlug(p.Repository.FullName, p.Repository.Name),
		FullName:      p.Repository.FullName,
		Owner:         p.Repository.Workspace.Slug,
		URL:           p.Repository.Links.HTML.Href,
		DefaultBranch: p.Repository.MainBranch.Name,
	}

	pr := p.PullRequest
	ev.PullRequest = &models.PullRequest{
		ID:         strconv.Itoa(pr.ID),
		Number:     pr.ID,
		Title:      pr.Title,
		State:      state(pr.State),
		IsDraft:    pr.Draft,
		Author:     user(pr.Author),
		HeadSHA:    pr.Source.Commit.Hash,
		HeadBranch: pr.Source.Branch.Name,
		BaseBranch: pr.Destination.Branch.Name,
		URL:        pr.Links.HTML.Href,
		UpdatedAt:  pr.UpdatedOn,
	}

	if c := p.Comment; c != nil {
		ev.Comment = &models.Comment{
			ID:     strconv.FormatInt(c.ID, 10),
			Body:   c.Content.Raw,
			Author: user(c.User),
		}
		if c.Parent != nil {
			ev.Comment.ThreadID = strconv.FormatInt(c.Parent.ID, 10)
		}
	}
	return ev, nil
}

// repoSlug takes the slug from full_name ("workspace/slug") since the display
// name may differ from the URL path segment.
func repoSlug(fullName, name string) string {
	for i := len(fullName) - 1; i >= 0; i-- {
		if fullName[i] == '/' {
			return fullName[i+1:]
		}
	}
	return name
}

func state(s string) models.PullRequestState {
	switch s {
	case "MERGED":
		return models.PullRequestMerged
	case "DECLINED", "SUPERSEDED":
		return models.PullRequestClosed
	}
	return models.PullRequestOpen
}

func user(a account) models.User {
	id := a.UUID
	if id == "" {
		id = a.AccountID
	}
	return models.User{
		ID:       id,
		Username: a.Nickname,
		Name:     a.DisplayName,
		IsBot:    a.Type == "app_user",
	}
}
