// Package review runs the code-review pipeline for one pull request event:
// configuration, prerequisite validation, change fetch, suggestion
// generation, guarding, prioritization, delivery and persistence.
package review

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/reviewgate/internal/prioritize"
	"github.com/maraichr/reviewgate/pkg/models"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Terminal reports whether normal stage progression must stop.
func (s Status) Terminal() bool {
	return s == StatusSkipped || s == StatusFailed
}

// Reason is the machine-readable cause of a skipped or failed run.
type Reason string

const (
	ReasonMissingData             Reason = "MISSING_DATA"
	ReasonPullRequestClosed       Reason = "PR_CLOSED"
	ReasonPullRequestMerged       Reason = "PR_MERGED"
	ReasonPullRequestLocked       Reason = "PR_LOCKED"
	ReasonUserIgnored             Reason = "USER_IGNORED"
	ReasonNoLicense               Reason = "NO_LICENSE"
	ReasonBYOKRequired            Reason = "BYOK_REQUIRED"
	ReasonPlanLimitExceeded       Reason = "PLAN_LIMIT_EXCEEDED"
	ReasonAutomatedReviewDisabled Reason = "AUTOMATED_REVIEW_DISABLED"
	ReasonBaseBranchNotAllowed    Reason = "BASE_BRANCH_NOT_ALLOWED"
	ReasonNoFiles                 Reason = "NO_FILES"
	ReasonStageError              Reason = "STAGE_ERROR"
	ReasonStagePanic              Reason = "STAGE_PANIC"
	ReasonTimeout                 Reason = "TIMEOUT"
	ReasonCancelled               Reason = "CANCELLED"
)

type StatusInfo struct {
	Status  Status
	Reason  Reason
	Message string
}

// Metadata keys shared between stages.
const (
	MetaShowStatusFeedback  = "showStatusFeedback"
	MetaNotificationHandled = "notificationHandled"
	MetaForced              = "forced"
	MetaDeliveryRan         = "deliveryRan"
)

// Metadata is a copy-on-write side channel. Set never mutates the receiver,
// so a RunContext copy held by an earlier stage keeps its own view.
type Metadata struct {
	values map[string]any
}

func (m Metadata) Set(key string, v any) Metadata {
	next := make(map[string]any, len(m.values)+1)
	maps.Copy(next, m.values)
	next[key] = v
	return Metadata{values: next}
}

func (m Metadata) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m Metadata) Bool(key string) bool {
	v, _ := m.values[key].(bool)
	return v
}

// RunContext is the state threaded through the pipeline. Stages receive it
// by value and return the updated copy.
type RunContext struct {
	RunID       uuid.UUID
	Trigger     string
	StartedAt   time.Time
	Tenant      models.OrganizationAndTeamData
	Platform    models.Platform
	Repository  models.Repository
	PullRequest *models.PullRequest
	Sender      models.User

	Config  models.CodeReviewConfig
	Files   []models.FileChange
	Commits []models.Commit

	ValidSuggestions     []models.CodeSuggestion
	DiscardedSuggestions []models.CodeSuggestion
	Pool                 *prioritize.FallbackPool
	Results              []models.CommentResult

	Status   StatusInfo
	Metadata Metadata
}

func (rc RunContext) WithStatus(status Status, reason Reason, message string) RunContext {
	rc.Status = StatusInfo{Status: status, Reason: reason, Message: message}
	return rc
}

func (rc RunContext) Skip(reason Reason, message string) RunContext {
	return rc.WithStatus(StatusSkipped, reason, message)
}

func (rc RunContext) Fail(reason Reason, message string) RunContext {
	return rc.WithStatus(StatusFailed, reason, message)
}

func (rc RunContext) WithMeta(key string, v any) RunContext {
	rc.Metadata = rc.Metadata.Set(key, v)
	return rc
}

// ShowStatusFeedback defaults to true until the config stage resolves it.
func (rc RunContext) ShowStatusFeedback() bool {
	v, ok := rc.Metadata.Get(MetaShowStatusFeedback)
	if !ok {
		return true
	}
	b, _ := v.(bool)
	return b
}

func (rc RunContext) prNumber() int {
	if rc.PullRequest == nil {
		return 0
	}
	return rc.PullRequest.Number
}

// Outcome converts the context into what persistence stores.
func (rc RunContext) Outcome() models.ReviewOutcome {
	out := models.ReviewOutcome{
		RunID:      rc.RunID,
		Tenant:     rc.Tenant,
		Platform:   rc.Platform,
		Repository: rc.Repository,
		Files:      rc.Files,
		Commits:    rc.Commits,
		Results:    rc.Results,
		Discarded:  reconcileDiscarded(rc.DiscardedSuggestions, rc.Results),
		Status:     string(rc.Status.Status),
		Reason:     string(rc.Status.Reason),
		Message:    rc.Status.Message,
		Trigger:    rc.Trigger,
		StartedAt:  rc.StartedAt,
	}
	if rc.PullRequest != nil {
		out.PullRequest = *rc.PullRequest
	}
	return out
}

// reconcileDiscarded drops discarded entries that were attempted as
// fallbacks; their CommentResult is the record of them.
func reconcileDiscarded(discarded []models.CodeSuggestion, results []models.CommentResult) []models.CodeSuggestion {
	attempted := make(map[string]struct{}, len(results))
	for _, r := range results {
		attempted[r.Suggestion.ID] = struct{}{}
	}
	out := make([]models.CodeSuggestion, 0, len(discarded))
	for _, d := range discarded {
		if _, ok := attempted[d.ID]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}
