package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeReviewConfig is the per-team (optionally per-repository) review
// policy.
type CodeReviewConfig struct {
	MaxSuggestions        int              `json:"max_suggestions"`
	SeverityLimits        map[Severity]int `json:"severity_limits,omitempty"`
	MinSeverity           Severity         `json:"min_severity,omitempty"`
	IgnoredUsers          []string         `json:"ignored_users,omitempty"`
	ShowStatusFeedback    *bool            `json:"show_status_feedback,omitempty"`
	AutomatedReviewActive bool             `json:"automated_review_active"`
	BaseBranches          []string         `json:"base_branches,omitempty"`
}

// DefaultCodeReviewConfig is used when a tenant has no stored config.
func DefaultCodeReviewConfig(maxSuggestions int) CodeReviewConfig {
	return CodeReviewConfig{
		MaxSuggestions:        maxSuggestions,
		AutomatedReviewActive: true,
	}
}

// StatusFeedbackEnabled defaults to true when unset.
func (c CodeReviewConfig) StatusFeedbackEnabled() bool {
	return c.ShowStatusFeedback == nil || *c.ShowStatusFeedback
}

// IsIgnoredUser matches on username or user id, case-insensitively.
func (c CodeReviewConfig) IsIgnoredUser(u User) bool {
	return slices.ContainsFunc(c.IgnoredUsers, func(ignored string) bool {
		return strings.EqualFold(ignored, u.Username) || (u.ID != "" && ignored == u.ID)
	})
}

// AllowsBaseBranch reports whether reviews run for PRs targeting branch. An
// empty list allows every branch.
func (c CodeReviewConfig) AllowsBaseBranch(branch string) bool {
	return len(c.BaseBranches) == 0 || slices.Contains(c.BaseBranches, branch)
}

// PullRequestSnapshot is the last stored state of a pull request, used to
// decide whether an update event should trigger a new review.
type PullRequestSnapshot struct {
	Platform     Platform         `json:"platform"`
	RepositoryID string           `json:"repository_id"`
	Number       int              `json:"number"`
	State        PullRequestState `json:"state"`
	IsDraft      bool             `json:"is_draft"`
	HeadSHA      string           `json:"head_sha"`
	CommitSHAs   []string         `json:"commit_shas"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// HasCommit reports whether sha appears in the stored commit history.
func (s PullRequestSnapshot) HasCommit(sha string) bool {
	return sha != "" && (s.HeadSHA == sha || slices.Contains(s.CommitSHAs, sha))
}

// DeliveryRecord is one persisted CommentResult or discarded suggestion.
type DeliveryRecord struct {
	ID             uuid.UUID      `json:"id"`
	RunID          uuid.UUID      `json:"run_id"`
	Platform       Platform       `json:"platform"`
	RepositoryID   string         `json:"repository_id"`
	PRNumber       int            `json:"pull_request_number"`
	SuggestionID   string         `json:"suggestion_id"`
	Path           string         `json:"path"`
	StartLine      *int           `json:"start_line,omitempty"`
	Line           int            `json:"line"`
	Severity       Severity       `json:"severity"`
	PriorityStatus PriorityStatus `json:"priority_status"`
	DeliveryStatus DeliveryStatus `json:"delivery_status,omitempty"`
	CommentID      string         `json:"comment_id,omitempty"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ReviewOutcome is everything one pipeline run hands to persistence.
type ReviewOutcome struct {
	RunID       uuid.UUID
	Tenant      OrganizationAndTeamData
	Platform    Platform
	Repository  Repository
	PullRequest PullRequest
	Files       []FileChange
	Commits     []Commit
	Results     []CommentResult
	Discarded   []CodeSuggestion
	Status      string
	Reason      string
	Message     string
	Trigger     string
	StartedAt   time.Time
}
