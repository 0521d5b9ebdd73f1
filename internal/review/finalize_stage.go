package review

import (
	"context"
	"log/slog"

	"github.com/maraichr/reviewgate/internal/platform"
)

// FinalizeStage is the executor's post-processing hook. It runs for every
// status.
type FinalizeStage struct {
	persister Persister
	clients   ClientFunc
	notify    notifier
	logger    *slog.Logger
}

func NewFinalizeStage(persister Persister, clients ClientFunc, logger *slog.Logger) *FinalizeStage {
	return &FinalizeStage{persister: persister, clients: clients, notify: notifier{logger: logger}, logger: logger}
}

func (s *FinalizeStage) Name() string { return "finalize" }

func (s *FinalizeStage) Execute(ctx context.Context, rc RunContext) (RunContext, error) {
	if !rc.Status.Status.Terminal() {
		rc = rc.WithStatus(StatusCompleted, "", "")
	}

	if rc.Metadata.Bool(MetaDeliveryRan) {
		if err := s.persister.AggregateAndSave(ctx, rc.Outcome()); err != nil {
			s.logger.Error("persist review failed",
				slog.String("run_id", rc.RunID.String()),
				slog.String("error", err.Error()))
		}
	}

	if rc.Metadata.Bool(MetaNotificationHandled) || !rc.ShowStatusFeedback() {
		return rc, nil
	}
	client, _ := s.clients(rc.Platform)
	switch rc.Status.Status {
	case StatusCompleted:
		s.notify.react(ctx, client, rc, platform.ReactionSuccess)
	case StatusFailed:
		s.notify.react(ctx, client, rc, platform.ReactionFailed)
	default:
		return rc, nil
	}
	return rc.WithMeta(MetaNotificationHandled, true), nil
}
