package guideline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/retry"
)

// Batch is one unit of concurrent LLM evaluation: a bucket of guidelines
// sharing a prompt template, classified by a Strategy.
type Batch struct {
	Bucket     BucketKind
	Strategy   string
	Guidelines []model.Guideline
}

// disambiguationTargets reports whether g's metadata marks it as the head of
// a disambiguation group (observational guidelines whose action is empty but
// which enumerate follow-up targets via tags prefixed "disambiguate:").
func disambiguationTargets(g model.Guideline) []string {
	var targets []string
	for _, t := range g.Tags {
		if strings.HasPrefix(t, "disambiguate:") {
			targets = append(targets, strings.TrimPrefix(t, "disambiguate:"))
		}
	}
	return targets
}

func alreadyApplied(mctx MatchingContext, g model.Guideline) bool {
	_, ok := mctx.AppliedGuidelineIDs[g.ID]
	return ok
}

// classify assigns g to one of the six generic buckets per the §4.2 table.
func classify(g model.Guideline, mctx MatchingContext, activeJourneys map[string]model.Journey) BucketKind {
	if g.IsJourneyNode() {
		if _, active := activeJourneys[g.Metadata.JourneyNodeJourneyID]; active {
			return BucketJourneyStep
		}
	}
	if g.IsObservational() {
		if len(disambiguationTargets(g)) > 0 {
			return BucketDisambiguation
		}
		return BucketObservational
	}
	if alreadyApplied(mctx, g) {
		if g.Metadata.CustomerDependentActionData {
			return BucketPrevAppliedCustomerDependent
		}
		return BucketPrevAppliedActionable
	}
	return BucketActionable
}

// GenericStrategy implements the default classify-into-six-buckets
// strategy described in §4.2 step 3.
type GenericStrategy struct{}

// NewGenericStrategy returns the default strategy.
func NewGenericStrategy() *GenericStrategy { return &GenericStrategy{} }

// Name implements Strategy.
func (s *GenericStrategy) Name() string { return "generic" }

// CreateMatchingBatches implements Strategy.
func (s *GenericStrategy) CreateMatchingBatches(_ context.Context, guidelines []model.Guideline, mctx MatchingContext, activeJourneys map[string]model.Journey) ([]*Batch, error) {
	buckets := map[BucketKind][]model.Guideline{}
	order := []BucketKind{
		BucketJourneyStep, BucketObservational, BucketDisambiguation,
		BucketPrevAppliedCustomerDependent, BucketPrevAppliedActionable, BucketActionable,
	}
	for _, g := range guidelines {
		b := classify(g, mctx, activeJourneys)
		buckets[b] = append(buckets[b], g)
	}

	var batches []*Batch
	for _, bucket := range order {
		members := buckets[bucket]
		if len(members) == 0 {
			continue
		}
		size := batchSize(len(members))
		for _, group := range chunk(members, size) {
			batches = append(batches, &Batch{Bucket: bucket, Strategy: s.Name(), Guidelines: group})
		}
	}
	return batches, nil
}

// TransformMatches implements Strategy: it drops journey-node matches whose
// journey is not in activeJourneys; every other match passes through
// unchanged. Whether a node lies on its journey's current path is not
// checked.
func (s *GenericStrategy) TransformMatches(matches []model.GuidelineMatch, activeJourneys map[string]model.Journey) []model.GuidelineMatch {
	out := make([]model.GuidelineMatch, 0, len(matches))
	for _, m := range matches {
		if m.Guideline.IsJourneyNode() {
			if _, active := activeJourneys[m.Guideline.Metadata.JourneyNodeJourneyID]; !active {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// promptFor builds the strategy-specific prompt for one batch. Each bucket
// gets a distinct framing per §4.2, but all share the same decision schema
// so the matcher can parse any batch's response uniformly.
func promptFor(b *Batch, mctx MatchingContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are evaluating whether behavioral guidelines apply to the current turn of a conversation between agent %q and customer %q.\n", mctx.Agent.Name, mctx.Customer.ID)
	switch b.Bucket {
	case BucketJourneyStep:
		sb.WriteString("These guidelines are steps in an active multi-turn journey. Decide which step the conversation is currently at.\n")
	case BucketObservational:
		sb.WriteString("These guidelines are observational (no action to take if they apply); decide whether their condition holds.\n")
	case BucketDisambiguation:
		sb.WriteString("These guidelines disambiguate between several possible customer intents; decide which, if any, applies.\n")
	case BucketPrevAppliedCustomerDependent:
		sb.WriteString("These guidelines were already applied in a prior turn and their action depends on customer-provided data that may have changed; re-evaluate.\n")
	case BucketPrevAppliedActionable:
		sb.WriteString("These guidelines were already applied in a prior turn; only re-apply if clearly still relevant.\n")
	case BucketActionable:
		sb.WriteString("These guidelines are new or continuous; decide whether their condition holds this turn.\n")
	}
	sb.WriteString("\nInteraction history:\n")
	for _, ev := range mctx.Interaction {
		if ev.Kind != model.EventKindMessage {
			continue
		}
		fmt.Fprintf(&sb, "- [%s] %v\n", ev.Source, ev.Data["message"])
	}
	sb.WriteString("\nGuidelines:\n")
	for _, g := range b.Guidelines {
		fmt.Fprintf(&sb, "- id=%s condition=%q action=%q\n", g.ID, g.Condition, g.Action)
	}
	sb.WriteString("\nFor every guideline listed above, in the same order, return a decision.\n")
	return sb.String()
}

// Process issues the batch's LLM call (wrapped in retry-up-to-3) and returns
// matches preserving input order, per §4.2 step 4/"Ordering & tie-breaks".
func (b *Batch) Process(ctx context.Context, gen llm.Generator, mctx MatchingContext) ([]model.GuidelineMatch, BatchGeneration, error) {
	start := time.Now()
	var result decisionSet
	prompt := promptFor(b, mctx)
	err := retry.Do(ctx, func(int) error {
		result = decisionSet{}
		_, genErr := gen.Generate(ctx, prompt, decisionSchema(), &result, llm.Hints{Temperature: 0.1})
		return genErr
	})
	gen_ := BatchGeneration{
		Bucket:       b.Bucket,
		Strategy:     b.Strategy,
		GuidelineIDs: guidelineIDs(b.Guidelines),
		Duration:     time.Since(start),
		Err:          err,
	}
	if err != nil {
		return nil, gen_, err
	}

	byID := map[string]decision{}
	for _, d := range result.Decisions {
		byID[d.GuidelineID] = d
	}

	var matches []model.GuidelineMatch
	for _, g := range b.Guidelines {
		d, ok := byID[g.ID]
		if !ok || !d.Applies {
			continue
		}
		score := d.Score
		if score == 0 {
			score = 1
		}
		matches = append(matches, model.GuidelineMatch{
			Guideline: g,
			Score:     score,
			Rationale: d.Rationale,
			Metadata:  map[string]any{"bucket": string(b.Bucket), "strategy": b.Strategy},
		})
	}
	return matches, gen_, nil
}

func guidelineIDs(guidelines []model.Guideline) []string {
	out := make([]string, len(guidelines))
	for i, g := range guidelines {
		out[i] = g.ID
	}
	return out
}
