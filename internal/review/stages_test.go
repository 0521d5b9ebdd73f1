package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maraichr/reviewgate/internal/delivery"
	"github.com/maraichr/reviewgate/internal/license"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/internal/suggest"
	"github.com/maraichr/reviewgate/pkg/models"
)

func TestResolveConfigStage(t *testing.T) {
	off := false
	stored := models.CodeReviewConfig{AutomatedReviewActive: true, ShowStatusFeedback: &off}
	s := NewResolveConfigStage(fakeConfigs{cfg: stored, ok: true}, 9, discardLogger())

	rc, err := s.Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.Equal(t, 9, rc.Config.MaxSuggestions, "zero stored cap falls back to the default")
	require.False(t, rc.ShowStatusFeedback())
	require.False(t, rc.Status.Status.Terminal())
}

func TestResolveConfigStageDefaults(t *testing.T) {
	rc, err := NewResolveConfigStage(fakeConfigs{}, 5, discardLogger()).Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.Equal(t, 5, rc.Config.MaxSuggestions)
	require.True(t, rc.ShowStatusFeedback())
}

func TestResolveConfigStageAutomationDisabled(t *testing.T) {
	s := NewResolveConfigStage(fakeConfigs{cfg: models.CodeReviewConfig{}, ok: true}, 9, discardLogger())

	rc, err := s.Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.Equal(t, ReasonAutomatedReviewDisabled, rc.Status.Reason)

	rc, err = s.Execute(context.Background(), baseContext().WithMeta(MetaForced, true))
	require.NoError(t, err)
	require.False(t, rc.Status.Status.Terminal(), "commands bypass the automation switch")
}

func TestResolveConfigStageBaseBranch(t *testing.T) {
	cfg := models.CodeReviewConfig{AutomatedReviewActive: true, BaseBranches: []string{"release"}}
	rc, err := NewResolveConfigStage(fakeConfigs{cfg: cfg, ok: true}, 9, discardLogger()).Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.Equal(t, ReasonBaseBranchNotAllowed, rc.Status.Reason)
}

func TestResolveConfigStageLoadError(t *testing.T) {
	_, err := NewResolveConfigStage(fakeConfigs{err: errors.New("db down")}, 9, discardLogger()).Execute(context.Background(), baseContext())
	require.Error(t, err)
}

func TestValidateMissingData(t *testing.T) {
	s := NewValidatePrerequisitesStage(licensed(), clientsOf(&fakeClient{}), discardLogger())

	for name, mutate := range map[string]func(*RunContext){
		"no repository":   func(rc *RunContext) { rc.Repository.ID = "" },
		"no pull request": func(rc *RunContext) { rc.PullRequest = nil },
		"no tenant":       func(rc *RunContext) { rc.Tenant = models.OrganizationAndTeamData{} },
	} {
		t.Run(name, func(t *testing.T) {
			rc := baseContext()
			mutate(&rc)
			out, err := s.Execute(context.Background(), rc)
			require.NoError(t, err)
			require.Equal(t, StatusSkipped, out.Status.Status)
			require.Equal(t, ReasonMissingData, out.Status.Reason)
		})
	}
}

func TestValidateTerminalStates(t *testing.T) {
	s := NewValidatePrerequisitesStage(licensed(), clientsOf(&fakeClient{}), discardLogger())
	cases := map[models.PullRequestState]Reason{
		models.PullRequestClosed:    ReasonPullRequestClosed,
		models.PullRequestMerged:    ReasonPullRequestMerged,
		models.PullRequestLocked:    ReasonPullRequestLocked,
		models.PullRequestAbandoned: ReasonPullRequestClosed,
	}
	for state, want := range cases {
		rc := baseContext()
		rc.PullRequest.State = state
		out, err := s.Execute(context.Background(), rc)
		require.NoError(t, err)
		require.Equal(t, want, out.Status.Reason, string(state))
	}
}

func TestValidateIgnoredUser(t *testing.T) {
	lic := licensed()
	s := NewValidatePrerequisitesStage(lic, clientsOf(&fakeClient{}), discardLogger())
	rc := baseContext()
	rc.Config.IgnoredUsers = []string{"DEV"}

	out, err := s.Execute(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, ReasonUserIgnored, out.Status.Reason)
}

func TestValidateLicenseSkipPostsFeedback(t *testing.T) {
	client := &fakeClient{}
	lic := &fakeLicenses{decision: license.Decision{Verdict: license.VerdictPlanLimitExceeded, Message: "limit"}}
	s := NewValidatePrerequisitesStage(lic, clientsOf(client), discardLogger())

	out, err := s.Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.Equal(t, ReasonPlanLimitExceeded, out.Status.Reason)
	require.True(t, out.Metadata.Bool(MetaNotificationHandled))
	require.Equal(t, []platform.Reaction{platform.ReactionSkipped}, client.reactions)
	require.Len(t, client.general, 1)
	require.True(t, HasStatusMarker(client.general[0]))
	require.Zero(t, lic.assignHit, "auto-assign only applies to missing seats")
}

func TestValidateLicenseSkipSilentWhenFeedbackOff(t *testing.T) {
	client := &fakeClient{}
	lic := &fakeLicenses{decision: license.Decision{Verdict: license.VerdictBYOKRequired}}
	s := NewValidatePrerequisitesStage(lic, clientsOf(client), discardLogger())

	out, err := s.Execute(context.Background(), baseContext().WithMeta(MetaShowStatusFeedback, false))
	require.NoError(t, err)
	require.Equal(t, ReasonBYOKRequired, out.Status.Reason)
	require.True(t, out.Metadata.Bool(MetaNotificationHandled))
	require.Empty(t, client.reactions)
	require.Empty(t, client.general)
}

func TestValidateAutoAssignsSeat(t *testing.T) {
	client := &fakeClient{}
	lic := &fakeLicenses{decision: license.Decision{Verdict: license.VerdictNoLicense, SeatMissing: true}, assign: true}
	s := NewValidatePrerequisitesStage(lic, clientsOf(client), discardLogger())

	out, err := s.Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.False(t, out.Status.Status.Terminal())
	require.Equal(t, 1, lic.assignHit)
	require.Equal(t, []platform.Reaction{platform.ReactionInProgress}, client.reactions)
}

func TestValidateNoSeatAvailable(t *testing.T) {
	lic := &fakeLicenses{decision: license.Decision{Verdict: license.VerdictNoLicense, SeatMissing: true}}
	out, err := NewValidatePrerequisitesStage(lic, clientsOf(&fakeClient{}), discardLogger()).
		Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.Equal(t, ReasonNoLicense, out.Status.Reason)
}

func TestValidateForcedPostsInProgressMarker(t *testing.T) {
	client := &fakeClient{}
	s := NewValidatePrerequisitesStage(licensed(), clientsOf(client), discardLogger())

	_, err := s.Execute(context.Background(), baseContext().WithMeta(MetaForced, true))
	require.NoError(t, err)
	require.Len(t, client.general, 1)
	require.Contains(t, client.general[0], InProgressMarker)
}

func TestValidatePassMarksNotificationHandledWhenFeedbackOff(t *testing.T) {
	client := &fakeClient{}
	s := NewValidatePrerequisitesStage(licensed(), clientsOf(client), discardLogger())

	out, err := s.Execute(context.Background(), baseContext().WithMeta(MetaShowStatusFeedback, false))
	require.NoError(t, err)
	require.False(t, out.Status.Status.Terminal())
	require.True(t, out.Metadata.Bool(MetaNotificationHandled))
	require.Empty(t, client.reactions)

	out, err = s.Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.False(t, out.Metadata.Bool(MetaNotificationHandled), "feedback on leaves the finalize reaction pending")
}

func TestValidateLicenseError(t *testing.T) {
	lic := &fakeLicenses{err: errors.New("timeout")}
	_, err := NewValidatePrerequisitesStage(lic, clientsOf(&fakeClient{}), discardLogger()).
		Execute(context.Background(), baseContext())
	require.Error(t, err)
}

func TestFetchChangesStage(t *testing.T) {
	client := &fakeClient{
		files:   []models.FileChange{{Filename: "main.go", Patch: goPatch}},
		commits: []models.Commit{{SHA: "aaa"}, {SHA: "bbb"}},
	}
	in := baseContext()
	out, err := NewFetchChangesStage(clientsOf(client)).Execute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	require.Equal(t, "bbb", out.PullRequest.HeadSHA)
	require.Empty(t, in.PullRequest.HeadSHA, "input context is not mutated")
}

func TestFetchChangesStageNoFiles(t *testing.T) {
	out, err := NewFetchChangesStage(clientsOf(&fakeClient{})).Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.Equal(t, ReasonNoFiles, out.Status.Reason)
}

func TestFetchChangesStageUnknownPlatform(t *testing.T) {
	_, err := NewFetchChangesStage(clientsOf(nil)).Execute(context.Background(), baseContext())
	require.Error(t, err)
}

func TestGenerateSuggestionsStage(t *testing.T) {
	gen := fakeGenerator{resp: suggest.Response{
		Suggestions: []models.CodeSuggestion{suggestion("a", models.SeverityHigh, 2)},
		Discarded:   []models.CodeSuggestion{suggestion("x", models.SeverityLow, 1)},
	}}
	out, err := NewGenerateSuggestionsStage(gen, discardLogger()).Execute(context.Background(), baseContext())
	require.NoError(t, err)
	require.Len(t, out.ValidSuggestions, 1)
	require.Len(t, out.DiscardedSuggestions, 1)

	_, err = NewGenerateSuggestionsStage(fakeGenerator{err: errors.New("503")}, discardLogger()).
		Execute(context.Background(), baseContext())
	require.Error(t, err)
}

func TestDiffGuardStage(t *testing.T) {
	rc := baseContext()
	rc.Files = []models.FileChange{{Filename: "main.go", Patch: goPatch}}
	rc.ValidSuggestions = []models.CodeSuggestion{
		suggestion("in", models.SeverityHigh, 2),
		suggestion("out", models.SeverityHigh, 40),
	}

	out, err := NewDiffGuardStage(discardLogger()).Execute(context.Background(), rc)
	require.NoError(t, err)
	require.Len(t, out.ValidSuggestions, 1)
	require.Equal(t, "in", out.ValidSuggestions[0].ID)
	require.Len(t, out.DiscardedSuggestions, 1)
	require.Equal(t, models.PriorityDiscardedBySafeguard, out.DiscardedSuggestions[0].PriorityStatus)
}

func TestPrioritizeStage(t *testing.T) {
	rc := baseContext()
	rc.Config.MaxSuggestions = 1
	rc.ValidSuggestions = []models.CodeSuggestion{
		suggestion("low", models.SeverityLow, 1),
		suggestion("high", models.SeverityHigh, 2),
	}

	out, err := PrioritizeStage{}.Execute(context.Background(), rc)
	require.NoError(t, err)
	require.Len(t, out.ValidSuggestions, 1)
	require.Equal(t, "high", out.ValidSuggestions[0].ID)
	require.Equal(t, 1, out.Pool.Remaining(models.SeverityLow))
}

func TestCreateLineCommentsStage(t *testing.T) {
	client := &fakeClient{}
	rc := baseContext()
	rc.ValidSuggestions = []models.CodeSuggestion{suggestion("a", models.SeverityHigh, 2)}

	out, err := NewCreateLineCommentsStage(clientsOf(client), discardLogger(), delivery.WithRetryDelay(0)).
		Execute(context.Background(), rc)
	require.NoError(t, err)
	require.True(t, out.Metadata.Bool(MetaDeliveryRan))
	require.Len(t, out.Results, 1)
	require.Equal(t, models.DeliverySent, out.Results[0].DeliveryStatus)
	require.Len(t, client.comments, 1)
}

func TestFinalizeStagePersistsReconciled(t *testing.T) {
	client := &fakeClient{}
	persister := &fakePersister{}
	fb := suggestion("fb", models.SeverityHigh, 3)
	fb.PriorityStatus = models.PriorityReprioritized

	rc := baseContext().WithMeta(MetaDeliveryRan, true)
	rc.Results = []models.CommentResult{{Suggestion: fb, DeliveryStatus: models.DeliverySent}}
	rc.DiscardedSuggestions = []models.CodeSuggestion{
		{ID: "fb", PriorityStatus: models.PriorityDiscardedByQuantity},
		{ID: "other", PriorityStatus: models.PriorityDiscardedBySafeguard},
	}

	out, err := NewFinalizeStage(persister, clientsOf(client), discardLogger()).Execute(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, out.Status.Status)
	require.Len(t, persister.outcomes, 1)
	saved := persister.outcomes[0]
	require.Len(t, saved.Discarded, 1)
	require.Equal(t, "other", saved.Discarded[0].ID)
	require.Equal(t, "completed", saved.Status)
	require.Equal(t, []platform.Reaction{platform.ReactionSuccess}, client.reactions)
}

func TestFinalizeStageSkippedRunNotPersisted(t *testing.T) {
	client := &fakeClient{}
	persister := &fakePersister{}
	rc := baseContext().Skip(ReasonUserIgnored, "").WithMeta(MetaNotificationHandled, true)

	out, err := NewFinalizeStage(persister, clientsOf(client), discardLogger()).Execute(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status.Status)
	require.Empty(t, persister.outcomes)
	require.Empty(t, client.reactions)
}

func TestFinalizeStageFailureReaction(t *testing.T) {
	client := &fakeClient{}
	rc := baseContext().Fail(ReasonStageError, "boom")

	_, err := NewFinalizeStage(&fakePersister{}, clientsOf(client), discardLogger()).Execute(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, []platform.Reaction{platform.ReactionFailed}, client.reactions)
}
