package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/reviewgate/internal/delivery"
)

// CreateLineCommentsStage posts the kept suggestions.
type CreateLineCommentsStage struct {
	clients ClientFunc
	opts    []delivery.Option
	logger  *slog.Logger
}

func NewCreateLineCommentsStage(clients ClientFunc, logger *slog.Logger, opts ...delivery.Option) *CreateLineCommentsStage {
	return &CreateLineCommentsStage{clients: clients, opts: opts, logger: logger}
}

func (s *CreateLineCommentsStage) Name() string { return "create_line_comments" }

func (s *CreateLineCommentsStage) Execute(ctx context.Context, rc RunContext) (RunContext, error) {
	client, ok := s.clients(rc.Platform)
	if !ok {
		return rc, fmt.Errorf("no client for platform %s", rc.Platform)
	}

	engine := delivery.NewEngine(client, s.logger.With(slog.String("run_id", rc.RunID.String())), s.opts...)
	rc.Results = engine.CreateLineComments(ctx, delivery.Target{
		Repository:  rc.Repository,
		PullRequest: *rc.PullRequest,
	}, rc.ValidSuggestions, rc.Pool)
	return rc.WithMeta(MetaDeliveryRan, true), nil
}
