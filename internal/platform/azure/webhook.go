package azure

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

const (
	eventCreated = "git.pullrequest.created"
	eventUpdated = "git.pullrequest.updated"
	eventMerged  = "git.pullrequest.merged"
	eventComment = "ms.vss-code.git-pullrequest-comment-event"
)

// EventType reads eventType from the body; service hooks carry no event
// header.
func (a *Adapter) EventType(_ http.Header, body []byte) string {
	var envelope struct {
		EventType string `json:"eventType"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return ""
	}
	return envelope.EventType
}

// VerifyWebhook checks the basic-auth password configured on the service
// hook subscription.
func (a *Adapter) VerifyWebhook(h http.Header, _ []byte) error {
	if a.secret == "" {
		return nil
	}
	req := http.Request{Header: h}
	_, password, ok := req.BasicAuth()
	if !ok {
		return platform.ErrMissingSignature
	}
	return platform.VerifyToken(a.secret, password)
}

type identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
	IsContainer bool   `json:"isContainer"`
}

type hookPullRequest struct {
	PullRequestID int       `json:"pullRequestId"`
	Status        string    `json:"status"`
	IsDraft       bool      `json:"isDraft"`
	Title         string    `json:"title"`
	SourceRefName string    `json:"sourceRefName"`
	TargetRefName string    `json:"targetRefName"`
	URL           string    `json:"url"`
	CreatedBy     identity  `json:"createdBy"`
	CreationDate  time.Time `json:"creationDate"`
	Repository    struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		WebURL  string `json:"webUrl"`
		Project struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"project"`
		DefaultBranch string `json:"defaultBranch"`
	} `json:"repository"`
	LastMergeSourceCommit struct {
		CommitID string `json:"commitId"`
	} `json:"lastMergeSourceCommit"`
}

type hookPayload struct {
	EventType string          `json:"eventType"`
	Resource  json.RawMessage `json:"resource"`
}

type hookComment struct {
	Comment struct {
		ID      int64    `json:"id"`
		Content string   `json:"content"`
		Author  identity `json:"author"`
	} `json:"comment"`
	PullRequest hookPullRequest `json:"pullRequest"`
}

func (a *Adapter) ParseWebhook(eventType string, body []byte) (models.WebhookEvent, error) {
	ev := models.WebhookEvent{Platform: models.PlatformAzure, EventType: eventType, Action: models.ActionUnknown}

	var p hookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
	}

	var pr hookPullRequest
	switch eventType {
	case eventCreated, eventUpdated, eventMerged:
		if err := json.Unmarshal(p.Resource, &pr); err != nil {
			return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
		}
		ev.Action = map[string]models.Action{
			eventCreated: models.ActionOpened,
			eventUpdated: models.ActionUpdated,
			eventMerged:  models.ActionClosed,
		}[eventType]
		ev.Sender = user(pr.CreatedBy)

	case eventComment:
		var c hookComment
		if err := json.Unmarshal(p.Resource, &c); err != nil {
			return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
		}
		pr = c.PullRequest
		ev.Action = models.ActionCommentCreated
		ev.Sender = user(c.Comment.Author)
		ev.Comment = &models.Comment{
			ID:     strconv.FormatInt(c.Comment.ID, 10),
			Body:   c.Comment.Content,
			Author: ev.Sender,
		}

	default:
		return ev, nil
	}

	ev.Repository = models.Repository{
		ID:            pr.Repository.ID,
		Name:          pr.Repository.Name,
		FullName:      pr.Repository.Project.Name + "/" + pr.Repository.Name,
		Owner:         a.org,
		Project:       pr.Repository.Project.Name,
		URL:           pr.Repository.WebURL,
		DefaultBranch: trimRef(pr.Repository.DefaultBranch),
	}
	ev.PullRequest = &models.PullRequest{
		ID:         strconv.Itoa(pr.PullRequestID),
		Number:     pr.PullRequestID,
		Title:      pr.Title,
		State:      state(pr.Status),
		IsDraft:    pr.IsDraft,
		Author:     user(pr.CreatedBy),
		HeadSHA:    pr.LastMergeSourceCommit.CommitID,
		HeadBranch: trimRef(pr.SourceRefName),
		BaseBranch: trimRef(pr.TargetRefName),
		URL:        pr.URL,
		UpdatedAt:  pr.CreationDate,
	}
	return ev, nil
}

func state(s string) models.PullRequestState {
	switch s {
	case "completed":
		return models.PullRequestMerged
	case "abandoned":
		return models.PullRequestAbandoned
	}
	return models.PullRequestOpen
}

func trimRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

func user(i identity) models.User {
	return models.User{
		ID:       i.ID,
		Username: i.UniqueName,
		Name:     i.DisplayName,
		IsBot:    i.IsContainer,
	}
}
