// Package platform defines the capability interface every source-control
// adapter implements and the shared error classification used by delivery.
package platform

import (
	"context"
	"net/http"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/maraichr/reviewgate/pkg/models"
)

// Side selects which version of the diff a line comment anchors to.
type Side string

const (
	SideRight Side = "RIGHT"
	SideLeft  Side = "LEFT"
)

// Reaction is a platform-neutral status reaction. Adapters map it onto their
// own emoji names.
type Reaction string

const (
	ReactionInProgress Reaction = "in_progress"
	ReactionSuccess    Reaction = "success"
	ReactionFailed     Reaction = "failed"
	ReactionSkipped    Reaction = "skipped"
)

// CommentRequest is a single inline review comment. StartLine is None for a
// single-line comment.
type CommentRequest struct {
	Repository  models.Repository
	PullRequest models.PullRequest
	Path        string
	Body        string
	StartLine   fn.Option[int]
	Line        int
	Side        Side
}

// CommentRef identifies a created comment on the platform.
type CommentRef struct {
	ID       string
	ReviewID string
}

// WebhookParser turns raw deliveries into canonical events.
type WebhookParser interface {
	Platform() models.Platform

	// EventType extracts the platform event name, usually from a header.
	EventType(h http.Header, body []byte) string

	// VerifyWebhook checks the delivery signature against the configured
	// secret. It returns nil when no secret is configured.
	VerifyWebhook(h http.Header, body []byte) error

	// ParseWebhook normalizes a payload. Unsupported event types return an
	// event with ActionUnknown rather than an error.
	ParseWebhook(eventType string, body []byte) (models.WebhookEvent, error)
}

// CommentPoster creates inline review comments.
type CommentPoster interface {
	CreateComment(ctx context.Context, req CommentRequest) (CommentRef, error)
}

// Client is the set of platform primitives the review pipeline calls.
type Client interface {
	CommentPoster
	CreateGeneralComment(ctx context.Context, repo models.Repository, pr models.PullRequest, body string) (CommentRef, error)
	AddReaction(ctx context.Context, repo models.Repository, pr models.PullRequest, reaction Reaction) error
	GetCommits(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.Commit, error)
	GetFiles(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.FileChange, error)
}

// Adapter is one source-control platform.
type Adapter interface {
	WebhookParser
	Client
}
