package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/reviewgate/pkg/models"
)

// InsertReviewRunParams holds one finished pipeline run.
type InsertReviewRunParams struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	TeamID         uuid.UUID
	Platform       models.Platform
	RepositoryID   string
	PRNumber       int
	HeadSHA        string
	Status         string
	Reason         string
	Message        string
	Trigger        string
	FilesChanged   int
	StartedAt      time.Time
}

func (q *Queries) InsertReviewRun(ctx context.Context, arg InsertReviewRunParams) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO review_runs
		   (id, organization_id, team_id, platform, repository_id, pr_number, head_sha,
		    status, reason, message, trigger, files_changed, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())`,
		arg.ID, arg.OrganizationID, arg.TeamID, string(arg.Platform), arg.RepositoryID, arg.PRNumber,
		arg.HeadSHA, arg.Status, arg.Reason, arg.Message, arg.Trigger, arg.FilesChanged, arg.StartedAt)
	return err
}

// InsertDeliveries batch-inserts delivery and discard records for one run.
func (q *Queries) InsertDeliveries(ctx context.Context, records []models.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(
			`INSERT INTO review_deliveries
			   (id, run_id, platform, repository_id, pr_number, suggestion_id, path,
			    start_line, line, severity, priority_status, delivery_status, comment_id, error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			r.ID, r.RunID, string(r.Platform), r.RepositoryID, r.PRNumber, r.SuggestionID, r.Path,
			r.StartLine, r.Line, string(r.Severity), string(r.PriorityStatus), string(r.DeliveryStatus),
			r.CommentID, r.Error)
	}
	return q.db.SendBatch(ctx, batch).Close()
}

// ListDeliveries returns the records of the most recent run for a pull
// request, ordered as they were delivered.
func (q *Queries) ListDeliveries(ctx context.Context, platform models.Platform, repositoryID string, number int) ([]models.DeliveryRecord, error) {
	rows, err := q.db.Query(ctx,
		`SELECT d.id, d.run_id, d.platform, d.repository_id, d.pr_number, d.suggestion_id, d.path,
		        d.start_line, d.line, d.severity, d.priority_status, d.delivery_status,
		        d.comment_id, d.error, d.created_at
		 FROM review_deliveries d
		 WHERE d.run_id = (
		   SELECT r.id FROM review_runs r
		   WHERE r.platform = $1 AND r.repository_id = $2 AND r.pr_number = $3
		   ORDER BY r.started_at DESC
		   LIMIT 1
		 )
		 ORDER BY d.seq`,
		string(platform), repositoryID, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.DeliveryRecord
	for rows.Next() {
		var i models.DeliveryRecord
		var start *int32
		if err := rows.Scan(
			&i.ID, &i.RunID, &i.Platform, &i.RepositoryID, &i.PRNumber, &i.SuggestionID, &i.Path,
			&start, &i.Line, &i.Severity, &i.PriorityStatus, &i.DeliveryStatus,
			&i.CommentID, &i.Error, &i.CreatedAt,
		); err != nil {
			return nil, err
		}
		if start != nil {
			v := int(*start)
			i.StartLine = &v
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
