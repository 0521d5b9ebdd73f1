package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/reviewgate/internal/delivery"
	"github.com/maraichr/reviewgate/internal/suggest"
	"github.com/maraichr/reviewgate/pkg/models"
)

// Trigger is a request to review one pull request.
type Trigger struct {
	Tenant      models.OrganizationAndTeamData
	Platform    models.Platform
	Repository  models.Repository
	PullRequest models.PullRequest
	Sender      models.User
	// Reason names what started the run, e.g. "opened" or "command".
	Reason string
	// Forced runs ignore the automated-review and base-branch settings.
	Forced bool
}

type Deps struct {
	Configs               ConfigLoader
	Licenses              LicenseChecker
	Clients               ClientFunc
	Generator             suggest.Generator
	Persister             Persister
	DefaultMaxSuggestions int
	PipelineTimeout       time.Duration
	DeliveryOptions       []delivery.Option
	Logger                *slog.Logger
}

// Runner builds the standard stage list and runs it per trigger.
type Runner struct {
	exec *Executor
	now  func() time.Time
}

func NewRunner(d Deps) *Runner {
	stages := []Stage{
		NewResolveConfigStage(d.Configs, d.DefaultMaxSuggestions, d.Logger),
		NewValidatePrerequisitesStage(d.Licenses, d.Clients, d.Logger),
		NewFetchChangesStage(d.Clients),
		NewGenerateSuggestionsStage(d.Generator, d.Logger),
		NewDiffGuardStage(d.Logger),
		PrioritizeStage{},
		NewCreateLineCommentsStage(d.Clients, d.Logger, d.DeliveryOptions...),
	}
	finalize := NewFinalizeStage(d.Persister, d.Clients, d.Logger)
	return &Runner{
		exec: NewExecutor(stages, finalize, d.PipelineTimeout, d.Logger),
		now:  time.Now,
	}
}

func (r *Runner) Run(ctx context.Context, t Trigger) RunContext {
	pr := t.PullRequest
	rc := RunContext{
		RunID:       uuid.New(),
		Trigger:     t.Reason,
		StartedAt:   r.now(),
		Tenant:      t.Tenant,
		Platform:    t.Platform,
		Repository:  t.Repository,
		PullRequest: &pr,
		Sender:      t.Sender,
	}
	if t.Forced {
		rc = rc.WithMeta(MetaForced, true)
	}
	return r.exec.Execute(ctx, rc)
}
