package gitlab

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
	headerEvent = "X-Gitlab-Event"
	headerToken = "X-Gitlab-Token"

	eventMergeRequest = "Merge Request Hook"
	eventNote         = "Note Hook"
)

func (a *Adapter) EventType(h http.Header, _ []byte) string {
	return h.Get(headerEvent)
}

func (a *Adapter) VerifyWebhook(h http.Header, _ []byte) error {
	return platform.VerifyToken(a.secret, h.Get(headerToken))
}

// timestamp accepts both RFC 3339 and the "2006-01-02 15:04:05 UTC" layout
// GitLab uses in hook payloads.
type timestamp struct{ time.Time }

func (t *timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05 MST", "2006-01-02 15:04:05 -0700"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

type hookUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type hookProject struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	Namespace         string `json:"namespace"`
	WebURL            string `json:"web_url"`
	DefaultBranch     string `json:"default_branch"`
}

type hookMergeRequest struct {
	ID           int64     `json:"id"`
	IID          int       `json:"iid"`
	Title        string    `json:"title"`
	State        string    `json:"state"`
	Action       string    `json:"action"`
	Draft        bool      `json:"draft"`
	WIP          bool      `json:"work_in_progress"`
	SourceBranch string    `json:"source_branch"`
	TargetBranch string    `json:"target_branch"`
	URL          string    `json:"url"`
	OldRev       string    `json:"oldrev"`
	AuthorID     int64     `json:"author_id"`
	UpdatedAt    timestamp `json:"updated_at"`
	LastCommit   struct {
		ID string `json:"id"`
	} `json:"last_commit"`
}

type hookPayload struct {
	ObjectKind       string            `json:"object_kind"`
	User             hookUser          `json:"user"`
	Project          hookProject       `json:"project"`
	ObjectAttributes json.RawMessage   `json:"object_attributes"`
	MergeRequest     *hookMergeRequest `json:"merge_request"`
	Changes          struct {
		Draft *struct {
			Previous bool `json:"previous"`
			Current  bool `json:"current"`
		} `json:"draft"`
	} `json:"changes"`
}

type hookNote struct {
	ID           int64  `json:"id"`
	Note         string `json:"note"`
	NoteableType string `json:"noteable_type"`
	Action       string `json:"action"`
	DiscussionID string `json:"discussion_id"`
}

func (a *Adapter) ParseWebhook(eventType string, body []byte) (models.WebhookEvent, error) {
	ev := models.WebhookEvent{Platform: models.PlatformGitLab, EventType: eventType, Action: models.ActionUnknown}
	if eventType != eventMergeRequest && eventType != eventNote {
		return ev, nil
	}

	var p hookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
	}
	ev.Repository = repository(p.Project)
	ev.Sender = user(p.User)

	switch eventType {
	case eventMergeRequest:
		var mr hookMergeRequest
		if err := json.Unmarshal(p.ObjectAttributes, &mr); err != nil {
			return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
		}
		pr := pullRequest(mr)
		ev.PullRequest = &pr
		ev.Action = mergeRequestAction(mr, p)

	case eventNote:
		var note hookNote
		if err := json.Unmarshal(p.ObjectAttributes, &note); err != nil {
			return ev, fmt.Errorf("%w: %v", platform.ErrInvalidPayload, err)
		}
		if note.NoteableType != "MergeRequest" || p.MergeRequest == nil {
			return ev, nil
		}
		pr := pullRequest(*p.MergeRequest)
		ev.PullRequest = &pr
		ev.Comment = &models.Comment{
			ID:       strconv.FormatInt(note.ID, 10),
			Body:     note.Note,
			Author:   ev.Sender,
			ThreadID: note.DiscussionID,
		}
		ev.Action = models.ActionCommentCreated
		if note.Action == "update" {
			ev.Action = models.ActionCommentEdited
		}
	}
	return ev, nil
}

func mergeRequestAction(mr hookMergeRequest, p hookPayload) models.Action {
	switch mr.Action {
	case "open":
		return models.ActionOpened
	case "reopen":
		return models.ActionReopened
	case "close", "merge":
		return models.ActionClosed
	case "update":
		if mr.OldRev != "" {
			return models.ActionSynchronized
		}
		if d := p.Changes.Draft; d != nil && d.Previous && !d.Current {
			return models.ActionReadyForReview
		}
		return models.ActionUpdated
	}
	return models.ActionUnknown
}

func repository(p hookProject) models.Repository {
	owner := p.Namespace
	if i := strings.LastIndex(p.PathWithNamespace, "/"); i > 0 {
		owner = p.PathWithNamespace[:i]
	}
	return models.Repository{
		ID:            strconv.FormatInt(p.ID, 10),
		Name:          p.Name,
		FullName:      p.PathWithNamespace,
		Owner:         owner,
		Project:       p.Namespace,
		URL:           p.WebURL,
		DefaultBranch: p.DefaultBranch,
	}
}

func pullRequest(mr hookMergeRequest) models.PullRequest {
	state := models.PullRequestOpen
	switch mr.State {
	case "closed":
		state = models.PullRequestClosed
	case "merged":
		state = models.PullRequestMerged
	case "locked":
		state = models.PullRequestLocked
	}
	return models.PullRequest{
		ID:         strconv.FormatInt(mr.ID, 10),
		Number:     mr.IID,
		Title:      mr.Title,
		State:      state,
		IsDraft:    mr.Draft || mr.WIP,
		Author:     models.User{ID: strconv.FormatInt(mr.AuthorID, 10)},
		HeadSHA:    mr.LastCommit.ID,
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
		URL:        mr.URL,
		UpdatedAt:  mr.UpdatedAt.Time,
	}
}

func user(u hookUser) models.User {
	return models.User{
		ID:       strconv.FormatInt(u.ID, 10),
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
	}
}
