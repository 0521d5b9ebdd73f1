package license

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/reviewgate/internal/store/postgres"
	"github.com/maraichr/reviewgate/pkg/models"
)

type fakeStore struct {
	license   *postgres.OrgLicense
	getErr    error
	licensed  map[string]bool
	runs      int
	freeSeats int
	since     time.Time
}

func (f *fakeStore) GetOrgLicense(_ context.Context, _ uuid.UUID) (postgres.OrgLicense, error) {
	if f.getErr != nil {
		return postgres.OrgLicense{}, f.getErr
	}
	if f.license == nil {
		return postgres.OrgLicense{}, pgx.ErrNoRows
	}
	return *f.license, nil
}

func (f *fakeStore) IsUserLicensed(_ context.Context, _ uuid.UUID, _ models.Platform, id string) (bool, error) {
	return f.licensed[id], nil
}

func (f *fakeStore) CountReviewRunsSince(_ context.Context, _ uuid.UUID, since time.Time) (int, error) {
	f.since = since
	return f.runs, nil
}

func (f *fakeStore) AssignLicenseIfSeatAvailable(_ context.Context, _ uuid.UUID, _ models.Platform, id, _ string) (bool, error) {
	if f.freeSeats == 0 {
		return false, nil
	}
	f.freeSeats--
	if f.licensed == nil {
		f.licensed = map[string]bool{}
	}
	f.licensed[id] = true
	return true, nil
}

func newService(f *fakeStore) *Service {
	s := NewService(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC) }
	return s
}

func activeLicense(seats int32) *postgres.OrgLicense {
	return &postgres.OrgLicense{Plan: "team", Status: "active", Seats: seats}
}

var req = Request{
	Tenant:   models.OrganizationAndTeamData{OrganizationID: uuid.New()},
	Platform: models.PlatformGitHub,
	User:     models.User{ID: "42", Username: "octo"},
}

func TestValidate(t *testing.T) {
	limit := int32(10)
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		store *fakeStore
		want  Verdict
		seat  bool
	}{
		{"no license row", &fakeStore{}, VerdictNoLicense, false},
		{"inactive", &fakeStore{license: &postgres.OrgLicense{Status: "cancelled"}}, VerdictNoLicense, false},
		{"expired", &fakeStore{license: &postgres.OrgLicense{Status: "active", ExpiresAt: &past}}, VerdictNoLicense, false},
		{"byok missing", &fakeStore{license: &postgres.OrgLicense{Status: "active", ByokRequired: true}}, VerdictBYOKRequired, false},
		{"byok configured", &fakeStore{license: &postgres.OrgLicense{Status: "active", ByokRequired: true, ByokConfigured: true}}, VerdictLicensed, false},
		{"plan limit", &fakeStore{license: &postgres.OrgLicense{Status: "active", MaxReviewsPerMonth: &limit}, runs: 10}, VerdictPlanLimitExceeded, false},
		{"under plan limit", &fakeStore{license: &postgres.OrgLicense{Status: "active", MaxReviewsPerMonth: &limit}, runs: 9}, VerdictLicensed, false},
		{"seat held", &fakeStore{license: activeLicense(5), licensed: map[string]bool{"42": true}}, VerdictLicensed, false},
		{"seat missing", &fakeStore{license: activeLicense(5)}, VerdictNoLicense, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := newService(tt.store).Validate(context.Background(), req)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if d.Verdict != tt.want {
				t.Errorf("verdict = %s, want %s (%s)", d.Verdict, tt.want, d.Message)
			}
			if d.SeatMissing != tt.seat {
				t.Errorf("SeatMissing = %v, want %v", d.SeatMissing, tt.seat)
			}
			if d.Allowed() != (tt.want == VerdictLicensed) {
				t.Errorf("Allowed() inconsistent with verdict %s", d.Verdict)
			}
		})
	}
}

func TestValidateCountsFromMonthStart(t *testing.T) {
	limit := int32(1)
	f := &fakeStore{license: &postgres.OrgLicense{Status: "active", MaxReviewsPerMonth: &limit}}
	if _, err := newService(f).Validate(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !f.since.Equal(want) {
		t.Errorf("since = %v, want %v", f.since, want)
	}
}

func TestValidateLookupError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := newService(&fakeStore{getErr: boom}).Validate(context.Background(), req)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestAutoAssign(t *testing.T) {
	f := &fakeStore{license: activeLicense(1), freeSeats: 1}
	s := newService(f)

	ok, err := s.AutoAssign(context.Background(), req)
	if err != nil || !ok {
		t.Fatalf("AutoAssign = %v, %v; want true", ok, err)
	}
	d, _ := s.Validate(context.Background(), req)
	if !d.Allowed() {
		t.Errorf("after assignment verdict = %s", d.Verdict)
	}

	other := req
	other.User = models.User{ID: "7", Username: "late"}
	if ok, _ := s.AutoAssign(context.Background(), other); ok {
		t.Error("assigned beyond available seats")
	}
}

func TestAutoAssignSkipsBots(t *testing.T) {
	f := &fakeStore{license: activeLicense(5), freeSeats: 5}
	bot := req
	bot.User = models.User{ID: "99", Username: "dependabot", IsBot: true}
	if ok, _ := newService(f).AutoAssign(context.Background(), bot); ok {
		t.Error("bots must not receive seats")
	}
	if f.freeSeats != 5 {
		t.Error("store called for a bot")
	}
}
