package review

import (
	"context"
	"fmt"
)

// FetchChangesStage loads the changed files and commits of the pull request.
type FetchChangesStage struct {
	clients ClientFunc
}

func NewFetchChangesStage(clients ClientFunc) *FetchChangesStage {
	return &FetchChangesStage{clients: clients}
}

func (s *FetchChangesStage) Name() string { return "fetch_changes" }

func (s *FetchChangesStage) Execute(ctx context.Context, rc RunContext) (RunContext, error) {
	client, ok := s.clients(rc.Platform)
	if !ok {
		return rc, fmt.Errorf("no client for platform %s", rc.Platform)
	}

	files, err := client.GetFiles(ctx, rc.Repository, *rc.PullRequest)
	if err != nil {
		return rc, fmt.Errorf("get files: %w", err)
	}
	if len(files) == 0 {
		return rc.Skip(ReasonNoFiles, "pull request has no changed files"), nil
	}

	commits, err := client.GetCommits(ctx, rc.Repository, *rc.PullRequest)
	if err != nil {
		return rc, fmt.Errorf("get commits: %w", err)
	}

	rc.Files = files
	rc.Commits = commits
	if rc.PullRequest.HeadSHA == "" && len(commits) > 0 {
		pr := *rc.PullRequest
		pr.HeadSHA = commits[len(commits)-1].SHA
		rc.PullRequest = &pr
	}
	return rc, nil
}
