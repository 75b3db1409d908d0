package guideline

import (
	"context"

	"github.com/parlant-engine/convengine/internal/model"
)

// Strategy resolves batches for a set of guidelines sharing that strategy,
// and post-processes the merged matches it produced.
type Strategy interface {
	// Name identifies the strategy class for grouping and telemetry.
	Name() string
	// CreateMatchingBatches classifies guidelines into batches appropriate
	// for this strategy and the current matching context.
	CreateMatchingBatches(ctx context.Context, guidelines []model.Guideline, mctx MatchingContext, activeJourneys map[string]model.Journey) ([]*Batch, error)
	// TransformMatches post-processes the flattened matches this strategy's
	// batches produced. Identity for most strategies.
	TransformMatches(matches []model.GuidelineMatch, activeJourneys map[string]model.Journey) []model.GuidelineMatch
}

// Resolver picks a Strategy for each guideline via the priority chain:
// per-guideline override -> per-tag override -> default generic strategy.
type Resolver struct {
	PerGuideline map[string]Strategy
	PerTag       map[string]Strategy
	Default      Strategy
}

// NewResolver returns a Resolver defaulting to the generic strategy.
func NewResolver() *Resolver {
	return &Resolver{
		PerGuideline: map[string]Strategy{},
		PerTag:       map[string]Strategy{},
		Default:      NewGenericStrategy(),
	}
}

// Resolve returns the strategy for g per the override chain.
func (r *Resolver) Resolve(g model.Guideline) Strategy {
	if s, ok := r.PerGuideline[g.ID]; ok {
		return s
	}
	for _, tag := range g.Tags {
		if s, ok := r.PerTag[tag]; ok {
			return s
		}
	}
	return r.Default
}

// GroupByStrategy groups guidelines by resolved strategy name, preserving
// insertion order of both the strategy groups and the guidelines within
// each group (an insertion-ordered mapping per spec.md §9).
func (r *Resolver) GroupByStrategy(guidelines []model.Guideline) ([]string, map[string]Strategy, map[string][]model.Guideline) {
	order := make([]string, 0)
	strategies := make(map[string]Strategy)
	groups := make(map[string][]model.Guideline)
	for _, g := range guidelines {
		s := r.Resolve(g)
		name := s.Name()
		if _, ok := groups[name]; !ok {
			order = append(order, name)
			strategies[name] = s
		}
		groups[name] = append(groups[name], g)
	}
	return order, strategies, groups
}

// batchSize implements the dynamic sizing table from §4.2 step 3.
func batchSize(n int) int {
	switch {
	case n <= 10:
		return 1
	case n <= 20:
		return 2
	case n <= 30:
		return 3
	default:
		return 5
	}
}

// chunk splits guidelines into batches of at most size items each,
// preserving input order.
func chunk(guidelines []model.Guideline, size int) [][]model.Guideline {
	if size <= 0 {
		size = 1
	}
	var out [][]model.Guideline
	for i := 0; i < len(guidelines); i += size {
		end := i + size
		if end > len(guidelines) {
			end = len(guidelines)
		}
		out = append(out, guidelines[i:end])
	}
	return out
}
