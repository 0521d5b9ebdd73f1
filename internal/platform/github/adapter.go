// Package github implements the platform adapter for GitHub and GitHub
// Enterprise using go-github.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/time/rate"

	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

const (
	defaultBaseURL = "https://api.github.com/"
	perPage        = 100
)

// Adapter talks to the GitHub REST API.
type Adapter struct {
	client  *gh.Client
	secret  string
	limiter *rate.Limiter
}

// New creates an adapter authenticated with the configured token. A
// non-default BaseURL selects GitHub Enterprise.
func New(cfg config.PlatformConfig, callTimeout time.Duration, limiter *rate.Limiter) (*Adapter, error) {
	client := gh.NewClient(platform.TokenHTTPClient(cfg.Token, callTimeout))
	if cfg.BaseURL != "" && cfg.BaseURL != defaultBaseURL {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github enterprise urls: %w", err)
		}
	}
	return NewWithClient(client, cfg.WebhookSecret, limiter), nil
}

// NewWithClient wraps an existing go-github client.
func NewWithClient(client *gh.Client, webhookSecret string, limiter *rate.Limiter) *Adapter {
	if limiter == nil {
		limiter = platform.NewLimiter(0, 0)
	}
	return &Adapter{client: client, secret: webhookSecret, limiter: limiter}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformGitHub }

func (a *Adapter) CreateComment(ctx context.Context, req platform.CommentRequest) (platform.CommentRef, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return platform.CommentRef{}, a.wrap("create comment", nil, err)
	}

	side := string(req.Side)
	if side == "" {
		side = string(platform.SideRight)
	}
	comment := &gh.PullRequestComment{
		Body:     gh.Ptr(req.Body),
		CommitID: gh.Ptr(req.PullRequest.HeadSHA),
		Path:     gh.Ptr(req.Path),
		Line:     gh.Ptr(req.Line),
		Side:     gh.Ptr(side),
	}
	// GitHub rejects start_line == line, so a collapsed range is sent as a
	// single-line comment.
	req.StartLine.WhenSome(func(start int) {
		if start < req.Line {
			comment.StartLine = gh.Ptr(start)
			comment.StartSide = gh.Ptr(side)
		}
	})

	created, resp, err := a.client.PullRequests.CreateComment(ctx,
		req.Repository.Owner, req.Repository.Name, req.PullRequest.Number, comment)
	if err != nil {
		return platform.CommentRef{}, a.wrap("create comment", resp, err)
	}

	ref := platform.CommentRef{ID: strconv.FormatInt(created.GetID(), 10)}
	if created.PullRequestReviewID != nil {
		ref.ReviewID = strconv.FormatInt(created.GetPullRequestReviewID(), 10)
	}
	return ref, nil
}

func (a *Adapter) CreateGeneralComment(ctx context.Context, repo models.Repository, pr models.PullRequest, body string) (platform.CommentRef, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return platform.CommentRef{}, a.wrap("create issue comment", nil, err)
	}
	created, resp, err := a.client.Issues.CreateComment(ctx, repo.Owner, repo.Name, pr.Number,
		&gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return platform.CommentRef{}, a.wrap("create issue comment", resp, err)
	}
	return platform.CommentRef{ID: strconv.FormatInt(created.GetID(), 10)}, nil
}

func (a *Adapter) AddReaction(ctx context.Context, repo models.Repository, pr models.PullRequest, reaction platform.Reaction) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return a.wrap("add reaction", nil, err)
	}
	_, resp, err := a.client.Reactions.CreateIssueReaction(ctx, repo.Owner, repo.Name, pr.Number, reactionContent(reaction))
	if err != nil {
		return a.wrap("add reaction", resp, err)
	}
	return nil
}

func reactionContent(r platform.Reaction) string {
	switch r {
	case platform.ReactionInProgress:
		return "eyes"
	case platform.ReactionSuccess:
		return "rocket"
	case platform.ReactionFailed:
		return "confused"
	}
	return "-1"
}

func (a *Adapter) GetCommits(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.Commit, error) {
	var out []models.Commit
	opts := &gh.ListOptions{PerPage: perPage}
	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, a.wrap("list commits", nil, err)
		}
		commits, resp, err := a.client.PullRequests.ListCommits(ctx, repo.Owner, repo.Name, pr.Number, opts)
		if err != nil {
			return nil, a.wrap("list commits", resp, err)
		}
		for _, c := range commits {
			out = append(out, models.Commit{
				SHA:       c.GetSHA(),
				Message:   c.GetCommit().GetMessage(),
				Author:    c.GetCommit().GetAuthor().GetName(),
				CreatedAt: c.GetCommit().GetAuthor().GetDate().Time,
			})
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

func (a *Adapter) GetFiles(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.FileChange, error) {
	var out []models.FileChange
	opts := &gh.ListOptions{PerPage: perPage}
	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, a.wrap("list files", nil, err)
		}
		files, resp, err := a.client.PullRequests.ListFiles(ctx, repo.Owner, repo.Name, pr.Number, opts)
		if err != nil {
			return nil, a.wrap("list files", resp, err)
		}
		for _, f := range files {
			out = append(out, models.FileChange{
				Filename:     f.GetFilename(),
				PreviousName: f.GetPreviousFilename(),
				Status:       fileStatus(f.GetStatus()),
				Additions:    f.GetAdditions(),
				Deletions:    f.GetDeletions(),
				Patch:        f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

func fileStatus(s string) models.FileStatus {
	switch s {
	case "added":
		return models.FileAdded
	case "removed":
		return models.FileRemoved
	case "renamed":
		return models.FileRenamed
	}
	return models.FileModified
}

// lineMismatchMarkers are fragments of the 422 validation messages GitHub
// returns when a comment targets lines outside the diff.
var lineMismatchMarkers = []string{
	"must be part of the diff",
	"could not be resolved",
	"part of the same hunk",
	"is outside the diff",
	"start_line must precede",
}

func (a *Adapter) wrap(op string, resp *gh.Response, err error) error {
	pe := &platform.Error{Platform: models.PlatformGitHub, Op: op, Err: err}

	var details []string
	var er *gh.ErrorResponse
	if errors.As(err, &er) {
		details = append(details, er.Message)
		for _, e := range er.Errors {
			details = append(details, e.Message)
		}
		if er.Response != nil {
			pe.StatusCode = er.Response.StatusCode
		}
	}
	if pe.StatusCode == 0 && resp != nil && resp.Response != nil {
		pe.StatusCode = resp.StatusCode
	}

	if pe.StatusCode == http.StatusUnprocessableEntity {
		msg := strings.ToLower(err.Error() + " " + strings.Join(details, " "))
		for _, marker := range lineMismatchMarkers {
			if strings.Contains(msg, marker) {
				pe.ErrorType = platform.ErrorTypeLinesMismatch
				break
			}
		}
	}
	return pe
}
