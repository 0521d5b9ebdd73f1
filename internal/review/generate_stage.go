package review

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/maraichr/reviewgate/internal/suggest"
)

// GenerateSuggestionsStage asks the external generator for candidates.
type GenerateSuggestionsStage struct {
	generator suggest.Generator
	logger    *slog.Logger
}

func NewGenerateSuggestionsStage(generator suggest.Generator, logger *slog.Logger) *GenerateSuggestionsStage {
	return &GenerateSuggestionsStage{generator: generator, logger: logger}
}

func (s *GenerateSuggestionsStage) Name() string { return "generate_suggestions" }

func (s *GenerateSuggestionsStage) Execute(ctx context.Context, rc RunContext) (RunContext, error) {
	resp, err := s.generator.Generate(ctx, suggest.Request{
		Tenant:      rc.Tenant,
		Platform:    rc.Platform,
		Repository:  rc.Repository,
		PullRequest: *rc.PullRequest,
		Files:       rc.Files,
		Config:      rc.Config,
	})
	if err != nil {
		return rc, fmt.Errorf("generate suggestions: %w", err)
	}

	rc.ValidSuggestions = resp.Suggestions
	rc.DiscardedSuggestions = append(slices.Clone(rc.DiscardedSuggestions), resp.Discarded...)
	s.logger.Info("suggestions generated",
		slog.String("run_id", rc.RunID.String()),
		slog.Int("suggestions", len(resp.Suggestions)),
		slog.Int("discarded", len(resp.Discarded)))
	return rc, nil
}
