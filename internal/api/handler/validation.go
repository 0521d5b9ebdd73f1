package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maraichr/reviewgate/pkg/apierr"
	"github.com/maraichr/reviewgate/pkg/models"
)

type pullRequestRef struct {
	Platform     models.Platform
	RepositoryID string
	Number       int
}

func parsePullRequestRef(r *http.Request) (pullRequestRef, *apierr.Error) {
	name := chi.URLParam(r, "platform")
	p, err := models.ParsePlatform(name)
	if err != nil {
		return pullRequestRef{}, apierr.UnsupportedPlatform(name)
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		return pullRequestRef{}, apierr.InvalidPullRequest()
	}
	repo := chi.URLParam(r, "repositoryID")
	if repo == "" {
		return pullRequestRef{}, apierr.InvalidPullRequest()
	}
	return pullRequestRef{Platform: p, RepositoryID: repo, Number: number}, nil
}
