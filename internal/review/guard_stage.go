package review

import (
	"context"
	"log/slog"
	"slices"

	"github.com/maraichr/reviewgate/internal/diffguard"
)

// DiffGuardStage discards suggestions that do not target changed lines.
type DiffGuardStage struct {
	logger *slog.Logger
}

func NewDiffGuardStage(logger *slog.Logger) *DiffGuardStage {
	return &DiffGuardStage{logger: logger}
}

func (s *DiffGuardStage) Name() string { return "diff_guard" }

func (s *DiffGuardStage) Execute(_ context.Context, rc RunContext) (RunContext, error) {
	guard := diffguard.New(rc.Files)
	if len(guard.Unparsed) > 0 {
		s.logger.Warn("unparsable patches left unguarded",
			slog.String("run_id", rc.RunID.String()),
			slog.Any("files", guard.Unparsed))
	}

	kept, rejected := guard.Filter(rc.ValidSuggestions)
	rc.ValidSuggestions = kept
	rc.DiscardedSuggestions = append(slices.Clone(rc.DiscardedSuggestions), rejected...)
	return rc, nil
}
