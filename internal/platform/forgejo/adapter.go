// Package forgejo implements the platform adapter for Forgejo and Gitea,
// which share the same v1 API and webhook format.
package forgejo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

const pageLimit = 50

type Adapter struct {
	rest   *platform.RESTClient
	secret string
}

func New(cfg config.PlatformConfig, callTimeout time.Duration, limiter *rate.Limiter) *Adapter {
	hc := platform.TokenHTTPClient(cfg.Token, callTimeout)
	return &Adapter{
		rest:   platform.NewRESTClient(models.PlatformForgejo, cfg.BaseURL, hc, limiter),
		secret: cfg.WebhookSecret,
	}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformForgejo }

func repoPath(repo models.Repository) string {
	return fmt.Sprintf("/repos/%s/%s", repo.Owner, repo.Name)
}

type reviewComment struct {
	Path        string `json:"path"`
	Body        string `json:"body"`
	NewPosition int    `json:"new_position"`
}

// CreateComment submits a COMMENT review holding one inline comment. The API
// anchors comments to a single line, so ranges use their end line.
func (a *Adapter) CreateComment(ctx context.Context, req platform.CommentRequest) (platform.CommentRef, error) {
	body := struct {
		CommitID string          `json:"commit_id,omitempty"`
		Event    string          `json:"event"`
		Body     string          `json:"body"`
		Comments []reviewComment `json:"comments"`
	}{
		CommitID: req.PullRequest.HeadSHA,
		Event:    "COMMENT",
		Comments: []reviewComment{{Path: req.Path, Body: req.Body, NewPosition: req.Line}},
	}

	var created struct {
		ID int64 `json:"id"`
	}
	path := fmt.Sprintf("%s/pulls/%d/reviews", repoPath(req.Repository), req.PullRequest.Number)
	if err := a.rest.Do(ctx, "create review", http.MethodPost, path, body, &created); err != nil {
		return platform.CommentRef{}, markLineMismatch(err)
	}
	id := strconv.FormatInt(created.ID, 10)
	return platform.CommentRef{ID: id, ReviewID: id}, nil
}

func markLineMismatch(err error) error {
	var pe *platform.Error
	if !errors.As(err, &pe) {
		return err
	}
	if pe.StatusCode != http.StatusUnprocessableEntity && pe.StatusCode != http.StatusBadRequest {
		return err
	}
	msg := strings.ToLower(pe.Message)
	if strings.Contains(msg, "line") || strings.Contains(msg, "position") {
		pe.ErrorType = platform.ErrorTypeLinesMismatch
	}
	return err
}

func (a *Adapter) CreateGeneralComment(ctx context.Context, repo models.Repository, pr models.PullRequest, body string) (platform.CommentRef, error) {
	var created struct {
		ID int64 `json:"id"`
	}
	path := fmt.Sprintf("%s/issues/%d/comments", repoPath(repo), pr.Number)
	if err := a.rest.Do(ctx, "create comment", http.MethodPost, path, map[string]string{"body": body}, &created); err != nil {
		return platform.CommentRef{}, err
	}
	return platform.CommentRef{ID: strconv.FormatInt(created.ID, 10)}, nil
}

func (a *Adapter) AddReaction(ctx context.Context, repo models.Repository, pr models.PullRequest, reaction platform.Reaction) error {
	path := fmt.Sprintf("%s/issues/%d/reactions", repoPath(repo), pr.Number)
	return a.rest.Do(ctx, "add reaction", http.MethodPost, path, map[string]string{"content": reactionContent(reaction)}, nil)
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
	for page := 1; ; page++ {
		var commits []struct {
			SHA    string `json:"sha"`
			Commit struct {
				Message string `json:"message"`
				Author  struct {
					Name string    `json:"name"`
					Date time.Time `json:"date"`
				} `json:"author"`
			} `json:"commit"`
		}
		path := fmt.Sprintf("%s/pulls/%d/commits?limit=%d&page=%d", repoPath(repo), pr.Number, pageLimit, page)
		if err := a.rest.Do(ctx, "list commits", http.MethodGet, path, nil, &commits); err != nil {
			return nil, err
		}
		for _, c := range commits {
			out = append(out, models.Commit{
				SHA:       c.SHA,
				Message:   c.Commit.Message,
				Author:    c.Commit.Author.Name,
				CreatedAt: c.Commit.Author.Date,
			})
		}
		if len(commits) < pageLimit {
			return out, nil
		}
	}
}

func (a *Adapter) GetFiles(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.FileChange, error) {
	raw, err := a.rest.DoRaw(ctx, "get diff", fmt.Sprintf("%s/pulls/%d.diff", repoPath(repo), pr.Number))
	if err != nil {
		return nil, err
	}
	return platform.FilesFromUnifiedDiff(raw)
}
