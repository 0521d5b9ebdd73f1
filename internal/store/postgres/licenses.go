package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/reviewgate/pkg/models"
)

// OrgLicense is the DB model for the org_licenses table.
type OrgLicense struct {
	OrganizationID     uuid.UUID  `json:"organization_id"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	Seats              int32      `json:"seats"`
	ByokRequired       bool       `json:"byok_required"`
	ByokConfigured     bool       `json:"byok_configured"`
	MaxReviewsPerMonth *int32     `json:"max_reviews_per_month"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

func (q *Queries) GetOrgLicense(ctx context.Context, organizationID uuid.UUID) (OrgLicense, error) {
	var i OrgLicense
	err := q.db.QueryRow(ctx,
		`SELECT organization_id, plan, status, seats, byok_required, byok_configured,
		        max_reviews_per_month, expires_at
		 FROM org_licenses
		 WHERE organization_id = $1`,
		organizationID).Scan(
		&i.OrganizationID, &i.Plan, &i.Status, &i.Seats, &i.ByokRequired,
		&i.ByokConfigured, &i.MaxReviewsPerMonth, &i.ExpiresAt,
	)
	return i, err
}

func (q *Queries) IsUserLicensed(ctx context.Context, organizationID uuid.UUID, platform models.Platform, gitUserID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM license_assignments
		   WHERE organization_id = $1 AND platform = $2 AND git_user_id = $3
		 )`,
		organizationID, string(platform), gitUserID).Scan(&exists)
	return exists, err
}

func (q *Queries) CountLicenseAssignments(ctx context.Context, organizationID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM license_assignments WHERE organization_id = $1`,
		organizationID).Scan(&n)
	return n, err
}

// AssignLicenseIfSeatAvailable inserts the assignment only while the org has
// a free seat. It reports whether a row was inserted.
func (q *Queries) AssignLicenseIfSeatAvailable(ctx context.Context, organizationID uuid.UUID, platform models.Platform, gitUserID, username string) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`INSERT INTO license_assignments (organization_id, platform, git_user_id, username)
		 SELECT $1, $2, $3, $4
		 FROM org_licenses l
		 WHERE l.organization_id = $1
		   AND (SELECT count(*) FROM license_assignments a WHERE a.organization_id = $1) < l.seats
		 ON CONFLICT DO NOTHING`,
		organizationID, string(platform), gitUserID, username)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) CountReviewRunsSince(ctx context.Context, organizationID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM review_runs
		 WHERE organization_id = $1 AND started_at >= $2 AND status <> 'skipped'`,
		organizationID, since).Scan(&n)
	return n, err
}
