// Package azure implements the platform adapter for Azure DevOps Repos.
package azure

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

const apiVersion = "api-version=7.1"

// Thread status and comment type values from the Azure DevOps REST API.
const (
	threadActive    = 1
	commentTypeText = 1
)

type Adapter struct {
	rest   *platform.RESTClient
	org    string
	secret string
}

// New authenticates with a personal access token over basic auth.
func New(cfg config.PlatformConfig, callTimeout time.Duration, limiter *rate.Limiter) *Adapter {
	hc := platform.BasicAuthHTTPClient(cfg.Username, cfg.Token, callTimeout)
	return &Adapter{
		rest:   platform.NewRESTClient(models.PlatformAzure, cfg.BaseURL+"/"+url.PathEscape(cfg.Organization), hc, limiter),
		org:    cfg.Organization,
		secret: cfg.WebhookSecret,
	}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformAzure }

func prPath(repo models.Repository, pr models.PullRequest) string {
	return fmt.Sprintf("/%s/_apis/git/repositories/%s/pullRequests/%d",
		url.PathEscape(repo.Project), url.PathEscape(repo.ID), pr.Number)
}

type filePosition struct {
	Line   int `json:"line"`
	Offset int `json:"offset"`
}

type threadContext struct {
	FilePath       string       `json:"filePath"`
	RightFileStart filePosition `json:"rightFileStart"`
	RightFileEnd   filePosition `json:"rightFileEnd"`
}

type threadComment struct {
	ParentCommentID int    `json:"parentCommentId"`
	Content         string `json:"content"`
	CommentType     int    `json:"commentType"`
}

type thread struct {
	Comments      []threadComment `json:"comments"`
	Status        int             `json:"status"`
	ThreadContext *threadContext  `json:"threadContext,omitempty"`
}

type createdThread struct {
	ID       int64 `json:"id"`
	Comments []struct {
		ID int64 `json:"id"`
	} `json:"comments"`
}

func (r createdThread) ref() platform.CommentRef {
	ref := platform.CommentRef{ReviewID: strconv.FormatInt(r.ID, 10)}
	if len(r.Comments) > 0 {
		ref.ID = strconv.FormatInt(r.Comments[0].ID, 10)
	}
	return ref
}

func (a *Adapter) CreateComment(ctx context.Context, req platform.CommentRequest) (platform.CommentRef, error) {
	start := req.StartLine.UnwrapOr(req.Line)
	body := thread{
		Comments: []threadComment{{Content: req.Body, CommentType: commentTypeText}},
		Status:   threadActive,
		ThreadContext: &threadContext{
			FilePath:       "/" + req.Path,
			RightFileStart: filePosition{Line: start, Offset: 1},
			RightFileEnd:   filePosition{Line: req.Line, Offset: 1},
		},
	}

	var created createdThread
	path := prPath(req.Repository, req.PullRequest) + "/threads?" + apiVersion
	if err := a.rest.Do(ctx, "create thread", http.MethodPost, path, body, &created); err != nil {
		return platform.CommentRef{}, markLineMismatch(err)
	}
	return created.ref(), nil
}

// markLineMismatch tags the 400 Azure DevOps returns when a thread context
// points at lines the file or iteration does not have.
func markLineMismatch(err error) error {
	var pe *platform.Error
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusBadRequest {
		return err
	}
	msg := strings.ToLower(pe.Message)
	for _, marker := range []string{"threadcontext", "rightfile", "line", "position"} {
		if strings.Contains(msg, marker) {
			pe.ErrorType = platform.ErrorTypeLinesMismatch
			break
		}
	}
	return err
}

func (a *Adapter) CreateGeneralComment(ctx context.Context, repo models.Repository, pr models.PullRequest, body string) (platform.CommentRef, error) {
	in := thread{
		Comments: []threadComment{{Content: body, CommentType: commentTypeText}},
		Status:   threadActive,
	}
	var created createdThread
	if err := a.rest.Do(ctx, "create thread", http.MethodPost, prPath(repo, pr)+"/threads?"+apiVersion, in, &created); err != nil {
		return platform.CommentRef{}, err
	}
	return created.ref(), nil
}

// AddReaction is not available on Azure DevOps pull requests.
func (a *Adapter) AddReaction(context.Context, models.Repository, models.PullRequest, platform.Reaction) error {
	return platform.ErrUnsupported
}

func (a *Adapter) GetCommits(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.Commit, error) {
	var resp struct {
		Value []struct {
			CommitID string `json:"commitId"`
			Comment  string `json:"comment"`
			Author   struct {
				Name string    `json:"name"`
				Date time.Time `json:"date"`
			} `json:"author"`
		} `json:"value"`
	}
	if err := a.rest.Do(ctx, "list commits", http.MethodGet, prPath(repo, pr)+"/commits?"+apiVersion, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Commit, 0, len(resp.Value))
	for _, c := range resp.Value {
		out = append(out, models.Commit{SHA: c.CommitID, Message: c.Comment, Author: c.Author.Name, CreatedAt: c.Author.Date})
	}
	return out, nil
}

// GetFiles lists the changes of the latest iteration. Azure DevOps does not
// return patch text, so Patch is left empty.
func (a *Adapter) GetFiles(ctx context.Context, repo models.Repository, pr models.PullRequest) ([]models.FileChange, error) {
	var iterations struct {
		Value []struct {
			ID int `json:"id"`
		} `json:"value"`
	}
	if err := a.rest.Do(ctx, "list iterations", http.MethodGet, prPath(repo, pr)+"/iterations?"+apiVersion, nil, &iterations); err != nil {
		return nil, err
	}
	if len(iterations.Value) == 0 {
		return nil, nil
	}
	latest := iterations.Value[len(iterations.Value)-1].ID

	var changes struct {
		ChangeEntries []struct {
			ChangeType string `json:"changeType"`
			Item       struct {
				Path          string `json:"path"`
				IsFolder      bool   `json:"isFolder"`
				GitObjectType string `json:"gitObjectType"`
			} `json:"item"`
			OriginalPath string `json:"originalPath"`
		} `json:"changeEntries"`
	}
	path := fmt.Sprintf("%s/iterations/%d/changes?%s", prPath(repo, pr), latest, apiVersion)
	if err := a.rest.Do(ctx, "list changes", http.MethodGet, path, nil, &changes); err != nil {
		return nil, err
	}

	var out []models.FileChange
	for _, c := range changes.ChangeEntries {
		if c.Item.IsFolder || c.Item.GitObjectType == "tree" {
			continue
		}
		fc := models.FileChange{Filename: trimSlash(c.Item.Path), Status: changeStatus(c.ChangeType)}
		if fc.Status == models.FileRenamed {
			fc.PreviousName = trimSlash(c.OriginalPath)
		}
		out = append(out, fc)
	}
	return out, nil
}

func trimSlash(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}
	return p
}

func changeStatus(t string) models.FileStatus {
	switch t {
	case "add":
		return models.FileAdded
	case "delete":
		return models.FileRemoved
	case "rename", "edit, rename":
		return models.FileRenamed
	}
	return models.FileModified
}
