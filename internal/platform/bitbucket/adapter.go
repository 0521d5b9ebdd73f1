// Package bitbucket implements the platform adapter for Bitbucket Cloud pull
// requests.
package bitbucket

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

type Adapter struct {
	rest   *platform.RESTClient
	secret string
}

// New authenticates with an app password when a username is configured and
// with a bearer access token otherwise.
func New(cfg config.PlatformConfig, callTimeout time.Duration, limiter *rate.Limiter) *Adapter {
	hc := platform.TokenHTTPClient(cfg.Token, callTimeout)
	if cfg.Username != "" {
		hc = platform.BasicAuthHTTPClient(cfg.Username, cfg.Token, callTimeout)
	}
	return &Adapter{
		rest:   platform.NewRESTClient(models.PlatformBitbucket, cfg.BaseURL, hc, limiter),
		secret: cfg.WebhookSecret,
	}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformBitbucket }

func prPath(repo models.Repository, pr models.PullRequest) string {
	return fmt.Sprintf("/repositories/%s/%s/pullrequests/%d", repo.Owner, repo.Name, pr.Number)
}

type content struct {
	Raw string `json:"raw"`
}

type inline struct {
	Path    string `json:"path"`
	To      int    `json:"to"`
	StartTo *int   `json:"start_to,omitempty"`
}

func (a *Adapter) CreateComment(ctx context.Context, req platform.CommentRequest) (platform.CommentRef, error) {
	body := struct {
		Content content `json:"content"`
		Inline  inline  `json:"inline"`
	}{
		Content: content{Raw: req.Body},
		Inline:  inline{Path: req.Path, To: req.Line},
	}
	req.StartLine.WhenSome(func(start int) {
		if start < req.Line {
			body.Inline.StartTo = &start
		}
	})

	var created struct {
		ID int64 `json:"id"`
	}
	if err := a.rest.Do(ctx, "create comment", http.MethodPost, prPath(req.Repository, req.PullRequest)+"/comments", body, &created); err != nil {
		return platform.CommentRef{}, markLineMismatch(err)
	}
	return platform.CommentRef{ID: strconv.FormatInt(created.ID, 10)}, nil
}

func markLineMismatch(err error) error {
	var pe *platform.Error
	if errors.As(err, &pe) && pe.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(pe.Message), "line") {
		pe.ErrorType = platform.ErrorTypeLinesMismatch
	}
	return err
}

func (a *Adapter) CreateGeneralComment(ctx context.Context, repo models.Repository, pr models.PullRequest, body string) (platform.CommentRef, error) {
	in := struct {
		Content content `json:"content"`
	}{Content: content{Raw: body}}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := a.rest.Do(ctx, "create comment", http.MethodPost, prPath(repo, pr)+"/comments", in, &created); err != nil {
		return platform.CommentRef{}, err
	}
	return platform.CommentRef{ID: strconv.FormatInt(created.ID, 10)}, nil
}

// AddReaction is not available on Bitbucket pull requests.
func (a *Adapter) AddReaction(context.Context, models.Repository, models.PullRequest, platform.Reaction) error {
	return platform.ErrUnsupported
}

func (a *Adapter) GetCommits(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.Commit, error) {
	var out []models.Commit
	next := prPath(repo, pr) + "/commits?pagelen=50"
	for next != "" {
		var page struct {
			Values []struct {
				Hash    string    `json:"hash"`
				Message string    `json:"message"`
				Date    time.Time `json:"date"`
				Author  struct {
					Raw string `json:"raw"`
				} `json:"author"`
			} `json:"values"`
			Next string `json:"next"`
		}
		if err := a.rest.Do(ctx, "list commits", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, c := range page.Values {
			out = append(out, models.Commit{SHA: c.Hash, Message: c.Message, Author: c.Author.Raw, CreatedAt: c.Date})
		}
		next = page.Next
	}
	return out, nil
}

func (a *Adapter) GetFiles(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.FileChange, error) {
	raw, err := a.rest.DoRaw(ctx, "get diff", prPath(repo, pr)+"/diff")
	if err != nil {
		return nil, err
	}
	return platform.FilesFromUnifiedDiff(raw)
}
