package guideline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/parlant-engine/convengine/internal/correlation"
	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/ratelimit"
	"github.com/parlant-engine/convengine/internal/telemetry"
)

// Matcher ties strategy resolution, batch creation, and parallel batched LLM
// evaluation together.
type Matcher struct {
	Resolver *Resolver
	Gen      llm.Generator
	Limiter  *ratelimit.Limiter
	Logger   telemetry.Logger
	Tracer   telemetry.Tracer
}

// NewMatcher returns a Matcher using the generic strategy by default. A nil
// limiter leaves batch fan-out unbounded.
func NewMatcher(gen llm.Generator, limiter *ratelimit.Limiter, logger telemetry.Logger, tracer telemetry.Tracer) *Matcher {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Matcher{Resolver: NewResolver(), Gen: gen, Limiter: limiter, Logger: logger, Tracer: tracer}
}

// Match resolves a strategy per guideline, groups into batches, evaluates
// every batch concurrently, and merges + transforms the results per §4.2.
func (m *Matcher) Match(ctx context.Context, mctx MatchingContext, activeJourneys map[string]model.Journey, guidelines []model.Guideline) (MatchingResult, error) {
	ctx, span := m.Tracer.Start(ctx, "guideline.match")
	defer span.End()
	start := time.Now()

	enabled := make([]model.Guideline, 0, len(guidelines))
	for _, g := range guidelines {
		if g.Enabled {
			enabled = append(enabled, g)
		}
	}
	if len(enabled) == 0 {
		return MatchingResult{TotalDuration: time.Since(start)}, nil
	}

	order, strategies, groups := m.Resolver.GroupByStrategy(enabled)

	var allBatches []*Batch
	for _, name := range order {
		s := strategies[name]
		batches, err := s.CreateMatchingBatches(ctx, groups[name], mctx, activeJourneys)
		if err != nil {
			return MatchingResult{}, err
		}
		allBatches = append(allBatches, batches...)
	}

	type outcome struct {
		matches []model.GuidelineMatch
		gen     BatchGeneration
		err     error
	}
	outcomes := make([]outcome, len(allBatches))
	var wg sync.WaitGroup
	for i, b := range allBatches {
		wg.Add(1)
		go func(i int, b *Batch) {
			defer wg.Done()
			bctx := correlation.Push(ctx, string(b.Bucket))
			if err := m.Limiter.Wait(bctx); err != nil {
				outcomes[i] = outcome{err: err}
				return
			}
			matches, gen, err := b.Process(bctx, m.Gen, mctx)
			if err != nil {
				m.Logger.Error(bctx, "guideline batch failed", "bucket", string(b.Bucket), "strategy", b.Strategy, "error", err.Error())
			}
			outcomes[i] = outcome{matches: matches, gen: gen, err: err}
		}(i, b)
	}
	wg.Wait()

	byStrategy := map[string][]model.GuidelineMatch{}
	var generations []BatchGeneration
	for _, o := range outcomes {
		generations = append(generations, o.gen)
		if o.err != nil {
			continue
		}
		byStrategy[o.gen.Strategy] = append(byStrategy[o.gen.Strategy], o.matches...)
	}

	var merged []model.GuidelineMatch
	for _, name := range order {
		s := strategies[name]
		merged = append(merged, s.TransformMatches(byStrategy[name], activeJourneys)...)
	}

	return MatchingResult{
		Matches:          merged,
		BatchGenerations: generations,
		TotalDuration:    time.Since(start),
	}, nil
}

// ResponseAnalysis classifies why a matched guideline's action may not be
// visible in the composed response (§4.2.7).
type ResponseAnalysis struct {
	GuidelineID string
	Fulfilled   bool
	// MissingKind is "functional" when a tool call the guideline's action
	// depends on did not execute, "behavioral" when the message composer
	// simply omitted the action, or empty when Fulfilled is true.
	MissingKind string
}

type responseAnalysisDecision struct {
	GuidelineID string `json:"guideline_id"`
	Fulfilled   bool   `json:"fulfilled"`
	MissingKind string `json:"missing_kind"`
}

type responseAnalysisSet struct {
	Decisions []responseAnalysisDecision `json:"decisions"`
}

func responseAnalysisSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"decisions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"guideline_id": map[string]any{"type": "string"},
						"fulfilled":    map[string]any{"type": "boolean"},
						"missing_kind": map[string]any{"type": "string", "enum": []string{"functional", "behavioral", ""}},
					},
					"required": []string{"guideline_id", "fulfilled"},
				},
			},
		},
		"required": []string{"decisions"},
	}
}

// AnalyzeResponse checks the composed message against the guidelines that
// matched this cycle, classifying any unfulfilled action as functional
// (blocked on a tool call) or behavioral (the composer's own omission).
func (m *Matcher) AnalyzeResponse(ctx context.Context, message string, matches []model.GuidelineMatch, toolEventsOccurred bool) ([]ResponseAnalysis, error) {
	actionable := make([]model.GuidelineMatch, 0, len(matches))
	for _, mm := range matches {
		if !mm.Guideline.IsObservational() {
			actionable = append(actionable, mm)
		}
	}
	if len(actionable) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("A message was composed in response to a customer. Decide, for each guideline below, whether its action is reflected in the message.\n\n")
	sb.WriteString("Message: ")
	sb.WriteString(message)
	sb.WriteString("\n\nGuidelines:\n")
	for _, mm := range actionable {
		sb.WriteString("- id=")
		sb.WriteString(mm.Guideline.ID)
		sb.WriteString(" action=")
		sb.WriteString(mm.Guideline.Action)
		sb.WriteString("\n")
	}

	var result responseAnalysisSet
	_, err := m.Gen.Generate(ctx, sb.String(), responseAnalysisSchema(), &result, llm.Hints{Temperature: 0.1})
	if err != nil {
		return nil, err
	}

	byID := map[string]responseAnalysisDecision{}
	for _, d := range result.Decisions {
		byID[d.GuidelineID] = d
	}

	out := make([]ResponseAnalysis, 0, len(actionable))
	for _, mm := range actionable {
		d, ok := byID[mm.Guideline.ID]
		if !ok {
			continue
		}
		kind := d.MissingKind
		if d.Fulfilled {
			kind = ""
		} else if kind == "" {
			if toolEventsOccurred {
				kind = "behavioral"
			} else {
				kind = "functional"
			}
		}
		out = append(out, ResponseAnalysis{
			GuidelineID: mm.Guideline.ID,
			Fulfilled:   d.Fulfilled,
			MissingKind: kind,
		})
	}
	return out, nil
}
