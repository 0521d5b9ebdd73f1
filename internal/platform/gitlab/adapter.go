// Package gitlab implements the platform adapter for GitLab merge requests
// over the v4 REST API.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

const perPage = 100

type Adapter struct {
	rest   *platform.RESTClient
	secret string
}

func New(cfg config.PlatformConfig, callTimeout time.Duration, limiter *rate.Limiter) *Adapter {
	hc := platform.TokenHTTPClient(cfg.Token, callTimeout)
	return &Adapter{
		rest:   platform.NewRESTClient(models.PlatformGitLab, cfg.BaseURL, hc, limiter),
		secret: cfg.WebhookSecret,
	}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformGitLab }

func mrPath(repo models.Repository, pr models.PullRequest) string {
	return fmt.Sprintf("/projects/%s/merge_requests/%d", url.PathEscape(repo.ID), pr.Number)
}

type diffRefs struct {
	BaseSHA  string `json:"base_sha"`
	HeadSHA  string `json:"head_sha"`
	StartSHA string `json:"start_sha"`
}

type position struct {
	BaseSHA      string `json:"base_sha"`
	StartSHA     string `json:"start_sha"`
	HeadSHA      string `json:"head_sha"`
	PositionType string `json:"position_type"`
	NewPath      string `json:"new_path"`
	OldPath      string `json:"old_path"`
	NewLine      int    `json:"new_line"`
}

// CreateComment opens a discussion anchored at the end line. GitLab positions
// need the merge request diff refs, which are fetched first.
func (a *Adapter) CreateComment(ctx context.Context, req platform.CommentRequest) (platform.CommentRef, error) {
	var mr struct {
		DiffRefs diffRefs `json:"diff_refs"`
	}
	if err := a.rest.Do(ctx, "get merge request", http.MethodGet, mrPath(req.Repository, req.PullRequest), nil, &mr); err != nil {
		return platform.CommentRef{}, err
	}

	body := struct {
		Body     string   `json:"body"`
		Position position `json:"position"`
	}{
		Body: req.Body,
		Position: position{
			BaseSHA:      mr.DiffRefs.BaseSHA,
			StartSHA:     mr.DiffRefs.StartSHA,
			HeadSHA:      mr.DiffRefs.HeadSHA,
			PositionType: "text",
			NewPath:      req.Path,
			OldPath:      req.Path,
			NewLine:      req.Line,
		},
	}

	var created struct {
		ID    string `json:"id"`
		Notes []struct {
			ID int64 `json:"id"`
		} `json:"notes"`
	}
	err := a.rest.Do(ctx, "create discussion", http.MethodPost, mrPath(req.Repository, req.PullRequest)+"/discussions", body, &created)
	if err != nil {
		return platform.CommentRef{}, markLineMismatch(err)
	}

	ref := platform.CommentRef{ReviewID: created.ID}
	if len(created.Notes) > 0 {
		ref.ID = strconv.FormatInt(created.Notes[0].ID, 10)
	}
	return ref, nil
}

// markLineMismatch tags the 400 GitLab returns for a position outside the
// diff.
func markLineMismatch(err error) error {
	var pe *platform.Error
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusBadRequest {
		return err
	}
	msg := strings.ToLower(pe.Message)
	if strings.Contains(msg, "line_code") || strings.Contains(msg, "position") {
		pe.ErrorType = platform.ErrorTypeLinesMismatch
	}
	return err
}

func (a *Adapter) CreateGeneralComment(ctx context.Context, repo models.Repository, pr models.PullRequest, body string) (platform.CommentRef, error) {
	var created struct {
		ID int64 `json:"id"`
	}
	in := map[string]string{"body": body}
	if err := a.rest.Do(ctx, "create note", http.MethodPost, mrPath(repo, pr)+"/notes", in, &created); err != nil {
		return platform.CommentRef{}, err
	}
	return platform.CommentRef{ID: strconv.FormatInt(created.ID, 10)}, nil
}

func (a *Adapter) AddReaction(ctx context.Context, repo models.Repository, pr models.PullRequest, reaction platform.Reaction) error {
	in := map[string]string{"name": awardName(reaction)}
	return a.rest.Do(ctx, "award emoji", http.MethodPost, mrPath(repo, pr)+"/award_emoji", in, nil)
}

func awardName(r platform.Reaction) string {
	switch r {
	case platform.ReactionInProgress:
		return "eyes"
	case platform.ReactionSuccess:
		return "rocket"
	case platform.ReactionFailed:
		return "confused"
	}
	return "thumbsdown"
}

func (a *Adapter) GetCommits(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.Commit, error) {
	var out []models.Commit
	for page := 1; ; page++ {
		var commits []struct {
			ID         string    `json:"id"`
			Message    string    `json:"message"`
			AuthorName string    `json:"author_name"`
			CreatedAt  time.Time `json:"created_at"`
		}
		path := fmt.Sprintf("%s/commits?per_page=%d&page=%d", mrPath(repo, pr), perPage, page)
		if err := a.rest.Do(ctx, "list commits", http.MethodGet, path, nil, &commits); err != nil {
			return nil, err
		}
		for _, c := range commits {
			out = append(out, models.Commit{SHA: c.ID, Message: c.Message, Author: c.AuthorName, CreatedAt: c.CreatedAt})
		}
		if len(commits) < perPage {
			return out, nil
		}
	}
}

func (a *Adapter) GetFiles(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.FileChange, error) {
	var out []models.FileChange
	for page := 1; ; page++ {
		var diffs []struct {
			OldPath     string `json:"old_path"`
			NewPath     string `json:"new_path"`
			NewFile     bool   `json:"new_file"`
			RenamedFile bool   `json:"renamed_file"`
			DeletedFile bool   `json:"deleted_file"`
			Diff        string `json:"diff"`
		}
		path := fmt.Sprintf("%s/diffs?per_page=%d&page=%d", mrPath(repo, pr), perPage, page)
		if err := a.rest.Do(ctx, "list diffs", http.MethodGet, path, nil, &diffs); err != nil {
			return nil, err
		}
		for _, d := range diffs {
			fc := models.FileChange{Filename: d.NewPath, Status: models.FileModified, Patch: d.Diff}
			switch {
			case d.NewFile:
				fc.Status = models.FileAdded
			case d.DeletedFile:
				fc.Status = models.FileRemoved
			case d.RenamedFile:
				fc.Status = models.FileRenamed
				fc.PreviousName = d.OldPath
			}
			fc.Additions, fc.Deletions = countLines(d.Diff)
			out = append(out, fc)
		}
		if len(diffs) < perPage {
			return out, nil
		}
	}
}

func countLines(patch string) (adds, dels int) {
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			adds++
		case strings.HasPrefix(line, "-"):
			dels++
		}
	}
	return adds, dels
}
