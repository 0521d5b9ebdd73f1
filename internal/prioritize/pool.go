package prioritize

import (
	"cmp"
	"slices"

	"github.com/maraichr/reviewgate/pkg/models"
)

// FallbackPool holds quantity-discarded suggestions by severity tier, in
// rank order. An entry is handed out at most once.
type FallbackPool struct {
	tiers map[models.Severity][]models.CodeSuggestion
	next  map[models.Severity]int
	ids   map[string]struct{}
}

func NewFallbackPool() *FallbackPool {
	return &FallbackPool{
		tiers: make(map[models.Severity][]models.CodeSuggestion),
		next:  make(map[models.Severity]int),
		ids:   make(map[string]struct{}),
	}
}

// BuildPool collects every fallback-eligible suggestion from discarded.
func BuildPool(discarded []models.CodeSuggestion) *FallbackPool {
	eligible := make([]models.CodeSuggestion, 0, len(discarded))
	for _, s := range discarded {
		if s.FallbackEligible() {
			eligible = append(eligible, s)
		}
	}
	slices.SortStableFunc(eligible, func(a, b models.CodeSuggestion) int {
		return cmp.Compare(a.Severity.Rank(), b.Severity.Rank())
	})

	p := NewFallbackPool()
	for _, s := range eligible {
		p.Add(s)
	}
	return p
}

// Add appends s to its tier. Suggestions not discarded by quantity and ids
// already pooled are rejected.
func (p *FallbackPool) Add(s models.CodeSuggestion) bool {
	if !s.FallbackEligible() {
		return false
	}
	if _, dup := p.ids[s.ID]; dup {
		return false
	}
	sev := s.Severity.Normalize()
	p.ids[s.ID] = struct{}{}
	p.tiers[sev] = append(p.tiers[sev], s)
	return true
}

// Next returns the next untried fallback of the tier and marks it
// REPRIORIZED before returning it.
func (p *FallbackPool) Next(sev models.Severity) (models.CodeSuggestion, bool) {
	if p == nil {
		return models.CodeSuggestion{}, false
	}
	sev = sev.Normalize()
	tier := p.tiers[sev]
	for i := p.next[sev]; i < len(tier); i++ {
		p.next[sev] = i + 1
		if tier[i].PriorityStatus == models.PriorityReprioritized {
			continue
		}
		tier[i].PriorityStatus = models.PriorityReprioritized
		return tier[i], true
	}
	return models.CodeSuggestion{}, false
}

// Remaining counts fallbacks of the tier not yet handed out.
func (p *FallbackPool) Remaining(sev models.Severity) int {
	if p == nil {
		return 0
	}
	n := 0
	for _, s := range p.tiers[sev.Normalize()] {
		if s.PriorityStatus != models.PriorityReprioritized {
			n++
		}
	}
	return n
}

// Tier returns a copy of the tier in substitution order.
func (p *FallbackPool) Tier(sev models.Severity) []models.CodeSuggestion {
	return slices.Clone(p.tiers[sev.Normalize()])
}

// Len is the total number of pooled suggestions.
func (p *FallbackPool) Len() int {
	return len(p.ids)
}
