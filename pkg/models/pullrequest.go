package models

import (
	"time"

	"github.com/google/uuid"
)

type OrganizationAndTeamData struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	TeamID         uuid.UUID `json:"team_id"`
}

func (o OrganizationAndTeamData) IsZero() bool {
	return o.OrganizationID == uuid.Nil
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

type Repository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Owner         string `json:"owner"`
	Project       string `json:"project,omitempty"` // Azure DevOps project / GitLab namespace
	URL           string `json:"url,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

type PullRequestState string

const (
	PullRequestOpen      PullRequestState = "open"
	PullRequestClosed    PullRequestState = "closed"
	PullRequestMerged    PullRequestState = "merged"
	PullRequestLocked    PullRequestState = "locked"
	PullRequestAbandoned PullRequestState = "abandoned"
)

// IsTerminal reports whether no further review should run for this state.
func (s PullRequestState) IsTerminal() bool {
	switch s {
	case PullRequestClosed, PullRequestMerged, PullRequestLocked, PullRequestAbandoned:
		return true
	}
	return false
}

type PullRequest struct {
	ID         string           `json:"id"`
	Number     int              `json:"number"`
	Title      string           `json:"title"`
	State      PullRequestState `json:"state"`
	IsDraft    bool             `json:"is_draft"`
	Author     User             `json:"author"`
	HeadSHA    string           `json:"head_sha"`
	HeadBranch string           `json:"head_branch"`
	BaseBranch string           `json:"base_branch"`
	URL        string           `json:"url,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type Comment struct {
	ID       string `json:"id"`
	Body     string `json:"body"`
	Author   User   `json:"author"`
	ThreadID string `json:"thread_id,omitempty"`
}

type Commit struct {
	SHA       string    `json:"sha"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileRemoved  FileStatus = "removed"
	FileRenamed  FileStatus = "renamed"
)

type FileChange struct {
	Filename     string     `json:"filename"`
	PreviousName string     `json:"previous_name,omitempty"`
	Status       FileStatus `json:"status"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	Patch        string     `json:"patch,omitempty"`
}

// Action is the canonical webhook action after platform normalization.
type Action string

const (
	ActionOpened         Action = "opened"
	ActionSynchronized   Action = "synchronized"
	ActionReopened       Action = "reopened"
	ActionClosed         Action = "closed"
	ActionUpdated        Action = "updated"
	ActionReadyForReview Action = "ready_for_review"
	ActionCommentCreated Action = "comment_created"
	ActionCommentEdited  Action = "comment_edited"
	ActionCommentDeleted Action = "comment_deleted"
	ActionUnknown        Action = "unknown"
)

// IsCommentAction reports whether the action originates from a comment event.
func (a Action) IsCommentAction() bool {
	switch a {
	case ActionCommentCreated, ActionCommentEdited, ActionCommentDeleted:
		return true
	}
	return false
}

// WebhookEvent is the canonical shape every platform payload is normalized to.
type WebhookEvent struct {
	Platform    Platform     `json:"platform"`
	EventType   string       `json:"event_type"`
	Action      Action       `json:"action"`
	Repository  Repository   `json:"repository"`
	PullRequest *PullRequest `json:"pull_request,omitempty"`
	Comment     *Comment     `json:"comment,omitempty"`
	Sender      User         `json:"sender"`
}
