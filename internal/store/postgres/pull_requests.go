package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/reviewgate/pkg/models"
)

// GetPullRequestSnapshot returns the stored state and commit history of a
// pull request. Missing rows surface as pgx.ErrNoRows.
func (q *Queries) GetPullRequestSnapshot(ctx context.Context, platform models.Platform, repositoryID string, number int) (models.PullRequestSnapshot, error) {
	s := models.PullRequestSnapshot{Platform: platform, RepositoryID: repositoryID, Number: number}
	var state string
	err := q.db.QueryRow(ctx,
		`SELECT state, is_draft, head_sha, updated_at
		 FROM pull_requests
		 WHERE platform = $1 AND repository_id = $2 AND number = $3`,
		string(platform), repositoryID, number).Scan(&state, &s.IsDraft, &s.HeadSHA, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.State = models.PullRequestState(state)

	rows, err := q.db.Query(ctx,
		`SELECT sha FROM pr_commits
		 WHERE platform = $1 AND repository_id = $2 AND pr_number = $3
		 ORDER BY created_at, sha`,
		string(platform), repositoryID, number)
	if err != nil {
		return s, err
	}
	s.CommitSHAs, err = pgx.CollectRows(rows, pgx.RowTo[string])
	return s, err
}

// UpsertPullRequestParams holds the pull request fields persisted on every
// webhook.
type UpsertPullRequestParams struct {
	Platform       models.Platform
	RepositoryID   string
	RepositoryName string
	OrganizationID *uuid.UUID
	PullRequest    models.PullRequest
}

func (q *Queries) UpsertPullRequest(ctx context.Context, arg UpsertPullRequestParams) error {
	pr := arg.PullRequest
	_, err := q.db.Exec(ctx,
		`INSERT INTO pull_requests
		   (platform, repository_id, repository_name, number, external_id, organization_id,
		    title, state, is_draft, head_sha, author, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		 ON CONFLICT (platform, repository_id, number)
		 DO UPDATE SET repository_name = EXCLUDED.repository_name,
		               external_id = EXCLUDED.external_id,
		               organization_id = COALESCE(EXCLUDED.organization_id, pull_requests.organization_id),
		               title = EXCLUDED.title,
		               state = EXCLUDED.state,
		               is_draft = EXCLUDED.is_draft,
		               head_sha = COALESCE(NULLIF(EXCLUDED.head_sha, ''), pull_requests.head_sha),
		               author = EXCLUDED.author,
		               updated_at = now()`,
		string(arg.Platform), arg.RepositoryID, arg.RepositoryName, pr.Number, pr.ID, arg.OrganizationID,
		pr.Title, string(pr.State), pr.IsDraft, pr.HeadSHA, pr.Author.Username)
	return err
}

// InsertCommits records commits for a pull request, ignoring ones already
// stored.
func (q *Queries) InsertCommits(ctx context.Context, platform models.Platform, repositoryID string, number int, commits []models.Commit) error {
	if len(commits) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range commits {
		batch.Queue(
			`INSERT INTO pr_commits (platform, repository_id, pr_number, sha, message, author, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
			 ON CONFLICT DO NOTHING`,
			string(platform), repositoryID, number, c.SHA, c.Message, c.Author, nullTime(c.CreatedAt))
	}
	return q.db.SendBatch(ctx, batch).Close()
}
