// Package license decides whether a tenant may run automated reviews for a
// pull request author.
package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/reviewgate/internal/store/postgres"
	"github.com/maraichr/reviewgate/pkg/models"
)

// ErrNotFound is returned when an organization has no license row.
var ErrNotFound = errors.New("license not found")

type Verdict string

const (
	VerdictLicensed          Verdict = "LICENSED"
	VerdictNoLicense         Verdict = "NO_LICENSE"
	VerdictBYOKRequired      Verdict = "BYOK_REQUIRED"
	VerdictPlanLimitExceeded Verdict = "PLAN_LIMIT_EXCEEDED"
)

// Decision is the permission verdict for one review request.
type Decision struct {
	Verdict Verdict
	Message string
	// SeatMissing is set when the org is licensed but the author holds no
	// seat, which is the only case where auto-assignment can help.
	SeatMissing bool
}

func (d Decision) Allowed() bool { return d.Verdict == VerdictLicensed }

// Store is the subset of queries the service reads and writes.
type Store interface {
	GetOrgLicense(ctx context.Context, organizationID uuid.UUID) (postgres.OrgLicense, error)
	IsUserLicensed(ctx context.Context, organizationID uuid.UUID, platform models.Platform, gitUserID string) (bool, error)
	CountReviewRunsSince(ctx context.Context, organizationID uuid.UUID, since time.Time) (int, error)
	AssignLicenseIfSeatAvailable(ctx context.Context, organizationID uuid.UUID, platform models.Platform, gitUserID, username string) (bool, error)
}

type Request struct {
	Tenant   models.OrganizationAndTeamData
	Platform models.Platform
	User     models.User
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

func (s *Service) lookup(ctx context.Context, orgID uuid.UUID) (postgres.OrgLicense, error) {
	lic, err := s.store.GetOrgLicense(ctx, orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return postgres.OrgLicense{}, ErrNotFound
	}
	if err != nil {
		return postgres.OrgLicense{}, fmt.Errorf("get org license: %w", err)
	}
	return lic, nil
}

// Validate returns the verdict for req. Lookup failures are returned as
// errors; every business outcome is a Decision.
func (s *Service) Validate(ctx context.Context, req Request) (Decision, error) {
	lic, err := s.lookup(ctx, req.Tenant.OrganizationID)
	if errors.Is(err, ErrNotFound) {
		return Decision{Verdict: VerdictNoLicense, Message: "organization has no license"}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	now := s.now()
	if lic.Status != "active" {
		return Decision{Verdict: VerdictNoLicense, Message: "license is " + lic.Status}, nil
	}
	if lic.ExpiresAt != nil && now.After(*lic.ExpiresAt) {
		return Decision{Verdict: VerdictNoLicense, Message: "license expired"}, nil
	}
	if lic.ByokRequired && !lic.ByokConfigured {
		return Decision{Verdict: VerdictBYOKRequired, Message: "plan requires a tenant-supplied API key"}, nil
	}

	if lic.MaxReviewsPerMonth != nil {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		used, err := s.store.CountReviewRunsSince(ctx, req.Tenant.OrganizationID, monthStart)
		if err != nil {
			return Decision{}, fmt.Errorf("count review runs: %w", err)
		}
		if used >= int(*lic.MaxReviewsPerMonth) {
			return Decision{
				Verdict: VerdictPlanLimitExceeded,
				Message: fmt.Sprintf("monthly review limit of %d reached", *lic.MaxReviewsPerMonth),
			}, nil
		}
	}

	// Seat-less plans license every author.
	if lic.Seats <= 0 {
		return Decision{Verdict: VerdictLicensed}, nil
	}

	ok, err := s.store.IsUserLicensed(ctx, req.Tenant.OrganizationID, req.Platform, req.User.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("check user license: %w", err)
	}
	if !ok {
		return Decision{
			Verdict:     VerdictNoLicense,
			Message:     fmt.Sprintf("user %s has no license seat", req.User.Username),
			SeatMissing: true,
		}, nil
	}
	return Decision{Verdict: VerdictLicensed}, nil
}

// AutoAssign gives the author a seat when the org has one free. Bots and
// authors without a platform id never qualify.
func (s *Service) AutoAssign(ctx context.Context, req Request) (bool, error) {
	if req.User.IsBot || req.User.ID == "" {
		return false, nil
	}
	ok, err := s.store.AssignLicenseIfSeatAvailable(ctx, req.Tenant.OrganizationID, req.Platform, req.User.ID, req.User.Username)
	if err != nil {
		return false, fmt.Errorf("assign license: %w", err)
	}
	if ok {
		s.logger.Info("license auto-assigned",
			slog.String("organization_id", req.Tenant.OrganizationID.String()),
			slog.String("platform", string(req.Platform)),
			slog.String("user", req.User.Username))
	}
	return ok, nil
}
