// Package prioritize ranks candidate suggestions, applies quantity budgets
// and keeps the quantity overflow as per-severity fallbacks.
package prioritize

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/maraichr/reviewgate/pkg/models"
)

// Policy is the budget applied to one pull request.
type Policy struct {
	// MaxSuggestions caps the kept suggestions. Zero or less means no cap.
	MaxSuggestions int
	// SeverityLimits caps each tier before the global cap is applied.
	SeverityLimits map[models.Severity]int
	// MinSeverity drops anything less severe. Empty keeps every tier.
	MinSeverity models.Severity
}

func PolicyFromConfig(cfg models.CodeReviewConfig) Policy {
	return Policy{
		MaxSuggestions: cfg.MaxSuggestions,
		SeverityLimits: cfg.SeverityLimits,
		MinSeverity:    cfg.MinSeverity,
	}
}

type Result struct {
	Kept []models.CodeSuggestion
	// Discarded holds the discarded input followed by everything this pass
	// dropped, each tagged with its reason.
	Discarded []models.CodeSuggestion
	Pool      *FallbackPool
}

// SortAndPrioritize orders suggestions by severity (stable within a tier),
// removes duplicates, then applies the severity floor, the per-tier limits
// and the global cap, in that order.
func SortAndPrioritize(suggestions, discarded []models.CodeSuggestion, p Policy) Result {
	ranked := dedupe(normalize(suggestions))
	slices.SortStableFunc(ranked, func(a, b models.CodeSuggestion) int {
		return cmp.Compare(a.Severity.Rank(), b.Severity.Rank())
	})

	all := slices.Clone(discarded)
	var kept []models.CodeSuggestion
	perTier := map[models.Severity]int{}

	for _, s := range ranked {
		switch {
		case p.MinSeverity != "" && s.Severity.Rank() > p.MinSeverity.Normalize().Rank():
			s.PriorityStatus = models.PriorityDiscardedBySeverity
			all = append(all, s)
			continue
		case overLimit(p.SeverityLimits, s.Severity, perTier[s.Severity]):
			s.PriorityStatus = models.PriorityDiscardedByQuantity
			all = append(all, s)
			continue
		case p.MaxSuggestions > 0 && len(kept) >= p.MaxSuggestions:
			s.PriorityStatus = models.PriorityDiscardedByQuantity
			all = append(all, s)
			continue
		}
		perTier[s.Severity]++
		s.PriorityStatus = models.PrioritySent
		kept = append(kept, s)
	}

	return Result{Kept: kept, Discarded: all, Pool: BuildPool(all)}
}

func overLimit(limits map[models.Severity]int, sev models.Severity, count int) bool {
	limit, ok := limits[sev]
	return ok && limit >= 0 && count >= limit
}

func normalize(in []models.CodeSuggestion) []models.CodeSuggestion {
	out := make([]models.CodeSuggestion, len(in))
	for i, s := range in {
		s.Severity = s.Severity.Normalize()
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.RelevantLinesEnd < s.RelevantLinesStart {
			s.RelevantLinesStart, s.RelevantLinesEnd = s.RelevantLinesEnd, s.RelevantLinesStart
		}
		out[i] = s
	}
	return out
}

// dedupe drops repeated ids and suggestions that target the same range of
// the same file with the same content. The first occurrence wins.
func dedupe(in []models.CodeSuggestion) []models.CodeSuggestion {
	seenIDs := make(map[string]struct{}, len(in))
	seenContent := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		key := fmt.Sprintf("%s:%d:%d:%s", s.RelevantFile, s.RelevantLinesStart, s.RelevantLinesEnd,
			strings.TrimSpace(s.SuggestionContent))
		if _, dup := seenIDs[s.ID]; dup {
			continue
		}
		if _, dup := seenContent[key]; dup {
			continue
		}
		seenIDs[s.ID] = struct{}{}
		seenContent[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
