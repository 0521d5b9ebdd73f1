package review

import (
	"context"

	"github.com/maraichr/reviewgate/internal/prioritize"
)

type PrioritizeStage struct{}

func (PrioritizeStage) Name() string { return "prioritize" }

func (PrioritizeStage) Execute(_ context.Context, rc RunContext) (RunContext, error) {
	res := prioritize.SortAndPrioritize(rc.ValidSuggestions, rc.DiscardedSuggestions, prioritize.PolicyFromConfig(rc.Config))
	rc.ValidSuggestions = res.Kept
	rc.DiscardedSuggestions = res.Discarded
	rc.Pool = res.Pool
	return rc, nil
}
