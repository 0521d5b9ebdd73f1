package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maraichr/reviewgate/internal/store/postgres"
	"github.com/maraichr/reviewgate/pkg/models"
)

type Store struct {
	*postgres.Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: postgres.New(pool),
		pool:    pool,
	}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) WithTx(ctx context.Context, fn func(*postgres.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LoadCodeReviewConfig returns the stored config, or ok=false when the
// tenant has none.
func (s *Store) LoadCodeReviewConfig(ctx context.Context, tenant models.OrganizationAndTeamData, repositoryID string) (models.CodeReviewConfig, bool, error) {
	cfg, err := s.GetCodeReviewConfig(ctx, tenant, repositoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CodeReviewConfig{}, false, nil
	}
	if err != nil {
		return models.CodeReviewConfig{}, false, fmt.Errorf("load code review config: %w", err)
	}
	return cfg, true, nil
}

// LoadSnapshot returns the stored pull request state, or ok=false for a pull
// request never seen before.
func (s *Store) LoadSnapshot(ctx context.Context, platform models.Platform, repositoryID string, number int) (models.PullRequestSnapshot, bool, error) {
	snap, err := s.GetPullRequestSnapshot(ctx, platform, repositoryID, number)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PullRequestSnapshot{}, false, nil
	}
	if err != nil {
		return models.PullRequestSnapshot{}, false, fmt.Errorf("load pull request snapshot: %w", err)
	}
	return snap, true, nil
}

// SavePullRequestState upserts the pull request and appends commits in one
// transaction.
func (s *Store) SavePullRequestState(ctx context.Context, platform models.Platform, repo models.Repository, pr models.PullRequest, tenant *models.OrganizationAndTeamData, commits []models.Commit) error {
	var orgID *uuid.UUID
	if tenant != nil && !tenant.IsZero() {
		orgID = &tenant.OrganizationID
	}
	return s.WithTx(ctx, func(q *postgres.Queries) error {
		if err := q.UpsertPullRequest(ctx, postgres.UpsertPullRequestParams{
			Platform:       platform,
			RepositoryID:   repo.ID,
			RepositoryName: repo.FullName,
			OrganizationID: orgID,
			PullRequest:    pr,
		}); err != nil {
			return fmt.Errorf("upsert pull request: %w", err)
		}
		if err := q.InsertCommits(ctx, platform, repo.ID, pr.Number, commits); err != nil {
			return fmt.Errorf("insert commits: %w", err)
		}
		return nil
	})
}

// ResolveTenant returns ok=false for a repository with no integration.
func (s *Store) ResolveTenant(ctx context.Context, platform models.Platform, repo models.Repository) (models.OrganizationAndTeamData, bool, error) {
	t, err := s.Queries.ResolveTenant(ctx, platform, repo.ID, repo.Owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OrganizationAndTeamData{}, false, nil
	}
	if err != nil {
		return models.OrganizationAndTeamData{}, false, fmt.Errorf("resolve tenant: %w", err)
	}
	return t, true, nil
}

// AggregateAndSave persists one pipeline run: the run row, the pull request
// state with its commits, and one delivery record per comment result and
// discarded suggestion.
func (s *Store) AggregateAndSave(ctx context.Context, out models.ReviewOutcome) error {
	records := DeliveryRecords(out)
	return s.WithTx(ctx, func(q *postgres.Queries) error {
		if err := q.UpsertPullRequest(ctx, postgres.UpsertPullRequestParams{
			Platform:       out.Platform,
			RepositoryID:   out.Repository.ID,
			RepositoryName: out.Repository.FullName,
			OrganizationID: &out.Tenant.OrganizationID,
			PullRequest:    out.PullRequest,
		}); err != nil {
			return fmt.Errorf("upsert pull request: %w", err)
		}
		if err := q.InsertCommits(ctx, out.Platform, out.Repository.ID, out.PullRequest.Number, out.Commits); err != nil {
			return fmt.Errorf("insert commits: %w", err)
		}
		if err := q.InsertReviewRun(ctx, postgres.InsertReviewRunParams{
			ID:             out.RunID,
			OrganizationID: out.Tenant.OrganizationID,
			TeamID:         out.Tenant.TeamID,
			Platform:       out.Platform,
			RepositoryID:   out.Repository.ID,
			PRNumber:       out.PullRequest.Number,
			HeadSHA:        out.PullRequest.HeadSHA,
			Status:         out.Status,
			Reason:         out.Reason,
			Message:        out.Message,
			Trigger:        out.Trigger,
			FilesChanged:   len(out.Files),
			StartedAt:      out.StartedAt,
		}); err != nil {
			return fmt.Errorf("insert review run: %w", err)
		}
		if err := q.InsertDeliveries(ctx, records); err != nil {
			return fmt.Errorf("insert deliveries: %w", err)
		}
		return nil
	})
}

// DeliveryRecords flattens a run into persisted rows: comment results first,
// in delivery order, then discarded suggestions.
func DeliveryRecords(out models.ReviewOutcome) []models.DeliveryRecord {
	records := make([]models.DeliveryRecord, 0, len(out.Results)+len(out.Discarded))
	base := models.DeliveryRecord{
		RunID:        out.RunID,
		Platform:     out.Platform,
		RepositoryID: out.Repository.ID,
		PRNumber:     out.PullRequest.Number,
	}

	for _, r := range out.Results {
		rec := base
		rec.ID = uuid.New()
		rec.SuggestionID = r.Suggestion.ID
		rec.Path = r.Path
		rec.StartLine = r.StartLine
		rec.Line = r.Line
		rec.Severity = r.Suggestion.Severity
		rec.PriorityStatus = r.Suggestion.PriorityStatus
		rec.DeliveryStatus = r.DeliveryStatus
		rec.Error = r.Error
		if r.CodeReviewFeedbackData != nil {
			rec.CommentID = r.CodeReviewFeedbackData.CommentID
		}
		records = append(records, rec)
	}

	for _, d := range out.Discarded {
		rec := base
		rec.ID = uuid.New()
		rec.SuggestionID = d.ID
		rec.Path = d.RelevantFile
		rec.Line = d.RelevantLinesEnd
		rec.Severity = d.Severity
		rec.PriorityStatus = d.PriorityStatus
		records = append(records, rec)
	}
	return records
}
