package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maraichr/reviewgate/internal/delivery"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/internal/suggest"
	"github.com/maraichr/reviewgate/pkg/models"
)

func TestRunnerEndToEnd(t *testing.T) {
	mismatch := &platform.Error{StatusCode: 422, ErrorType: platform.ErrorTypeLinesMismatch}
	client := &fakeClient{
		files:       []models.FileChange{{Filename: "main.go", Patch: goPatch}, {Filename: "util.go", Patch: goPatch}},
		commits:     []models.Commit{{SHA: "abc"}},
		commentErrs: map[string]error{"util.go": mismatch},
	}
	over := suggestion("overflow", models.SeverityHigh, 3)
	bad := suggestion("bad", models.SeverityHigh, 2)
	bad.RelevantFile = "util.go"
	persister := &fakePersister{}

	r := NewRunner(Deps{
		Configs:  fakeConfigs{cfg: models.CodeReviewConfig{MaxSuggestions: 1, AutomatedReviewActive: true}, ok: true},
		Licenses: licensed(),
		Clients:  clientsOf(client),
		Generator: fakeGenerator{resp: suggest.Response{
			Suggestions: []models.CodeSuggestion{bad, over},
		}},
		Persister:       persister,
		DeliveryOptions: []delivery.Option{delivery.WithRetryDelay(0)},
		Logger:          discardLogger(),
	})

	base := baseContext()
	rc := r.Run(context.Background(), Trigger{
		Tenant:      base.Tenant,
		Platform:    base.Platform,
		Repository:  base.Repository,
		PullRequest: *base.PullRequest,
		Reason:      "opened",
	})

	require.Equal(t, StatusCompleted, rc.Status.Status, rc.Status.Message)
	require.Len(t, rc.Results, 2)
	require.Equal(t, models.DeliveryReplaced, rc.Results[0].DeliveryStatus)
	require.Equal(t, "bad", rc.Results[0].Suggestion.ID)
	require.Equal(t, models.DeliverySent, rc.Results[1].DeliveryStatus)
	require.Equal(t, "overflow", rc.Results[1].Suggestion.ID)
	require.Equal(t, models.PriorityReprioritized, rc.Results[1].Suggestion.PriorityStatus)
	require.Equal(t, "abc", rc.PullRequest.HeadSHA)

	require.Len(t, persister.outcomes, 1)
	require.Empty(t, persister.outcomes[0].Discarded, "the attempted fallback is recorded once, as a result")
	require.Equal(t, []platform.Reaction{platform.ReactionInProgress, platform.ReactionSuccess}, client.reactions)
}
