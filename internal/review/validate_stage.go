package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/reviewgate/internal/license"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

// ValidatePrerequisitesStage gates the run on data completeness, pull
// request state, the ignore list and the license verdict.
type ValidatePrerequisitesStage struct {
	licenses LicenseChecker
	clients  ClientFunc
	notify   notifier
	logger   *slog.Logger
}

func NewValidatePrerequisitesStage(licenses LicenseChecker, clients ClientFunc, logger *slog.Logger) *ValidatePrerequisitesStage {
	return &ValidatePrerequisitesStage{
		licenses: licenses,
		clients:  clients,
		notify:   notifier{logger: logger},
		logger:   logger,
	}
}

func (s *ValidatePrerequisitesStage) Name() string { return "validate_prerequisites" }

func (s *ValidatePrerequisitesStage) Execute(ctx context.Context, rc RunContext) (RunContext, error) {
	if rc.Repository.ID == "" || rc.Tenant.IsZero() || rc.PullRequest == nil ||
		(rc.PullRequest.ID == "" && rc.PullRequest.Number == 0) {
		return rc.Skip(ReasonMissingData, "repository, pull request or tenant missing").
			WithMeta(MetaNotificationHandled, true), nil
	}

	if reason, ok := stateReason(rc.PullRequest.State); ok {
		return rc.Skip(reason, "pull request is "+string(rc.PullRequest.State)).
			WithMeta(MetaNotificationHandled, true), nil
	}

	actor := rc.PullRequest.Author
	if rc.Sender.Username != "" {
		actor = rc.Sender
	}
	if rc.Config.IsIgnoredUser(actor) || rc.Config.IsIgnoredUser(rc.PullRequest.Author) {
		return rc.Skip(ReasonUserIgnored, "user "+actor.Username+" is ignored").
			WithMeta(MetaNotificationHandled, true), nil
	}

	client, _ := s.clients(rc.Platform)
	req := license.Request{Tenant: rc.Tenant, Platform: rc.Platform, User: rc.PullRequest.Author}
	decision, err := s.licenses.Validate(ctx, req)
	if err != nil {
		return rc, fmt.Errorf("validate license: %w", err)
	}

	if !decision.Allowed() && decision.SeatMissing {
		assigned, err := s.licenses.AutoAssign(ctx, req)
		if err != nil {
			s.logger.Warn("license auto-assign failed",
				slog.String("run_id", rc.RunID.String()),
				slog.String("error", err.Error()))
		}
		if assigned {
			decision = license.Decision{Verdict: license.VerdictLicensed}
		}
	}
	if !decision.Allowed() {
		return s.notify.skip(ctx, client, rc, verdictReason(decision.Verdict), decision.Message), nil
	}

	if !rc.ShowStatusFeedback() {
		return rc.WithMeta(MetaNotificationHandled, true), nil
	}
	s.notify.react(ctx, client, rc, platform.ReactionInProgress)
	if rc.Metadata.Bool(MetaForced) {
		s.notify.comment(ctx, client, rc, "Review in progress.\n\n"+InProgressMarker+"\n")
	}
	return rc, nil
}

func stateReason(state models.PullRequestState) (Reason, bool) {
	switch state {
	case models.PullRequestMerged:
		return ReasonPullRequestMerged, true
	case models.PullRequestClosed, models.PullRequestAbandoned:
		return ReasonPullRequestClosed, true
	case models.PullRequestLocked:
		return ReasonPullRequestLocked, true
	}
	return "", false
}

func verdictReason(v license.Verdict) Reason {
	switch v {
	case license.VerdictBYOKRequired:
		return ReasonBYOKRequired
	case license.VerdictPlanLimitExceeded:
		return ReasonPlanLimitExceeded
	}
	return ReasonNoLicense
}
