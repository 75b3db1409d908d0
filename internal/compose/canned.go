package compose

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
)

// CannedResponseGenerator implements the §4.4.2 "4+1 stage" canned-response
// pipeline shared by CannedFluid, CannedComposited, and CannedStrict: draft,
// candidate retrieval, field extraction + rendering, selection, and
// (composited only) a revision pass.
type CannedResponseGenerator struct {
	Deps Dependencies
	Mode model.CompositionMode
}

type matchQuality string

const (
	qualityHigh    matchQuality = "high"
	qualityPartial matchQuality = "partial"
	qualityNone    matchQuality = "none"
)

type selection struct {
	CandidateID  string       `json:"candidate_id"`
	MatchQuality matchQuality `json:"match_quality"`
}

func selectionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"candidate_id":  map[string]any{"type": "string"},
			"match_quality": map[string]any{"type": "string", "enum": []string{"high", "partial", "none"}},
		},
		"required": []string{"candidate_id", "match_quality"},
	}
}

type fieldExtraction struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

func fieldExtractionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{"type": "string"},
			"found": map[string]any{"type": "boolean"},
		},
		"required": []string{"found"},
	}
}

type renderedCandidate struct {
	Response model.CannedResponse
	Rendered string
}

// Compose implements Composer.
func (c *CannedResponseGenerator) Compose(ctx context.Context, gctx GenerationContext) (Result, error) {
	ctx, span := c.Deps.Tracer.Start(ctx, "compose.canned")
	defer span.End()

	// Stage 1: draft.
	var draft Draft
	if _, err := c.Deps.Gen.Generate(ctx, buildDraftPrompt(gctx), draftSchema(), &draft, llm.Hints{Temperature: 0.1}); err != nil {
		return Result{}, fmt.Errorf("compose: draft generation: %w", err)
	}

	// Stage 2: candidate retrieval.
	candidates, err := c.Deps.CannedResponses.FindForContext(ctx, gctx.Agent, gctx.ActiveJourneys, allMatchedGuidelines(gctx))
	if err != nil {
		return Result{}, fmt.Errorf("compose: candidate retrieval: %w", err)
	}
	candidates = rankBySimilarity(candidates, draft.Message)

	// Stage 3: field extraction + rendering.
	rendered := c.renderCandidates(ctx, candidates, gctx, draft.Message)

	// Stage 4: selection.
	sel, err := c.selectBest(ctx, rendered, draft.Message)
	if err != nil {
		return Result{}, fmt.Errorf("compose: selection: %w", err)
	}

	switch c.Mode {
	case model.CompositionCannedStrict:
		return c.composeStrict(ctx, rendered, sel, gctx, draft.Message)
	case model.CompositionCannedComposited:
		return c.composeComposited(ctx, rendered, sel, draft.Message)
	default: // model.CompositionCannedFluid
		return c.composeCannedFluid(rendered, sel, draft.Message)
	}
}

func allMatchedGuidelines(gctx GenerationContext) []model.Guideline {
	out := make([]model.Guideline, 0, len(gctx.OrdinaryMatches)+len(gctx.ToolEnabledMatches))
	for _, m := range gctx.OrdinaryMatches {
		out = append(out, m.Guideline)
	}
	for _, m := range gctx.ToolEnabledMatches {
		out = append(out, m.Guideline)
	}
	return out
}

// rankBySimilarity scores candidates by token overlap between the draft and
// (template || signals), the same "combined semantic score" spec.md §4.4.2
// step 2 describes, implemented without a vector store since none is wired
// for canned-response retrieval.
func rankBySimilarity(candidates []model.CannedResponse, draft string) []model.CannedResponse {
	draftTokens := tokenize(draft)
	type scored struct {
		r     model.CannedResponse
		score float64
	}
	out := make([]scored, len(candidates))
	for i, r := range candidates {
		corpus := r.Template + " " + strings.Join(r.Signals, " ")
		out[i] = scored{r: r, score: overlapScore(draftTokens, tokenize(corpus))}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	ranked := make([]model.CannedResponse, len(out))
	for i, s := range out {
		ranked[i] = s.r
	}
	return ranked
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[strings.Trim(w, ".,!?;:\"'")] = true
	}
	return out
}

func overlapScore(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	hits := 0
	for w := range a {
		if b[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}

// renderCandidates implements §4.4.2 step 3: resolve every field a template
// references via standard -> tool-based -> generative, in order, discarding
// any template where a field fails all three methods.
func (c *CannedResponseGenerator) renderCandidates(ctx context.Context, candidates []model.CannedResponse, gctx GenerationContext, draft string) []renderedCandidate {
	toolSources := make([]toolFieldSource, len(gctx.ToolResults))
	for i, r := range gctx.ToolResults {
		toolSources[i] = toolFieldSource{CannedResponseFields: r.CannedResponseFields}
	}

	var out []renderedCandidate
	for _, r := range candidates {
		fields := templateFields(r.Template)
		values := map[string]string{}
		ok := true
		for _, f := range fields {
			v, resolved := c.resolveField(ctx, f, gctx, toolSources, draft)
			if !resolved {
				ok = false
				break
			}
			values[f] = v
		}
		if !ok {
			continue
		}
		out = append(out, renderedCandidate{Response: r, Rendered: renderTemplate(r.Template, values)})
	}
	return out
}

func (c *CannedResponseGenerator) resolveField(ctx context.Context, field string, gctx GenerationContext, toolSources []toolFieldSource, draft string) (string, bool) {
	if v, ok := standardField(field, gctx); ok {
		return v, true
	}
	if v, ok := toolBasedField(field, toolSources); ok {
		return v, true
	}
	prompt := fmt.Sprintf("Extract the value for field %q from the draft reply and interaction so far. Draft: %q. If the value cannot be determined, set found=false.", field, draft)
	var fe fieldExtraction
	if _, err := c.Deps.Gen.Generate(ctx, prompt, fieldExtractionSchema(), &fe, llm.Hints{Temperature: 0.1}); err != nil {
		c.Deps.Logger.Warn(ctx, "generative field extraction failed", "field", field, "error", err.Error())
		return "", false
	}
	if !fe.Found {
		return "", false
	}
	return fe.Value, true
}

// selectBest implements §4.4.2 step 4: an LLM call chooses the best
// candidate against the draft, reporting match_quality.
func (c *CannedResponseGenerator) selectBest(ctx context.Context, candidates []renderedCandidate, draft string) (selection, error) {
	if len(candidates) == 0 {
		return selection{MatchQuality: qualityNone}, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Draft reply: %q\n\nCandidates:\n", draft)
	for _, rc := range candidates {
		fmt.Fprintf(&sb, "- id=%s text=%q\n", rc.Response.ID, rc.Rendered)
	}
	sb.WriteString("\nChoose the candidate_id whose rendered text best matches the draft's intent, and rate match_quality as high, partial, or none.\n")

	var sel selection
	_, err := c.Deps.Gen.Generate(ctx, sb.String(), selectionSchema(), &sel, llm.Hints{Temperature: 0.1})
	return sel, err
}

func findRendered(candidates []renderedCandidate, id string) (renderedCandidate, bool) {
	for _, rc := range candidates {
		if rc.Response.ID == id {
			return rc, true
		}
	}
	return renderedCandidate{}, false
}

// composeStrict implements §6.5's Strict row: fall back to the NoMatch
// template unless match_quality is high and the selection resolves to a
// candidate verbatim.
func (c *CannedResponseGenerator) composeStrict(ctx context.Context, candidates []renderedCandidate, sel selection, gctx GenerationContext, draft string) (Result, error) {
	if sel.MatchQuality == qualityHigh {
		if rc, ok := findRendered(candidates, sel.CandidateID); ok {
			return Result{Text: rc.Rendered, Draft: draft, CannedResponses: []string{rc.Response.ID}}, nil
		}
	}
	return c.noMatchFallback(ctx, gctx, draft)
}

// noMatchFallback renders the agent's configured NoMatchResponseProvider
// template, tagged "no_match", substituting only standard fields (a
// NoMatch template references no tool-derived data by construction).
func (c *CannedResponseGenerator) noMatchFallback(ctx context.Context, gctx GenerationContext, draft string) (Result, error) {
	templates, err := c.Deps.CannedResponses.FindByTag(ctx, "no_match")
	if err != nil {
		return Result{}, fmt.Errorf("compose: load no-match template: %w", err)
	}
	if len(templates) == 0 {
		return Result{}, fmt.Errorf("compose: no no_match canned response configured for strict mode")
	}
	t := templates[0]
	values := map[string]string{}
	for _, f := range templateFields(t.Template) {
		v, _ := standardField(f, gctx)
		values[f] = v
	}
	return Result{Text: renderTemplate(t.Template, values), Draft: draft, CannedResponses: []string{t.ID}, Tags: []string{"no_match"}}, nil
}

// composeComposited implements §6.5's Composited row: always run the
// revision stage on the selected (or drafted, if none matched) candidate.
func (c *CannedResponseGenerator) composeComposited(ctx context.Context, candidates []renderedCandidate, sel selection, draft string) (Result, error) {
	base := draft
	var cannedIDs []string
	if rc, ok := findRendered(candidates, sel.CandidateID); ok && sel.MatchQuality != qualityNone {
		base = rc.Rendered
		cannedIDs = []string{rc.Response.ID}
	}
	revised, err := c.revise(ctx, draft, base)
	if err != nil {
		return Result{}, fmt.Errorf("compose: revision: %w", err)
	}
	return Result{Text: revised, Draft: draft, CannedResponses: cannedIDs}, nil
}

// composeCannedFluid implements §6.5's CannedFluid row: use the selection
// if high quality, else fall back to the fluid draft untouched.
func (c *CannedResponseGenerator) composeCannedFluid(candidates []renderedCandidate, sel selection, draft string) (Result, error) {
	if sel.MatchQuality == qualityHigh {
		if rc, ok := findRendered(candidates, sel.CandidateID); ok {
			return Result{Text: rc.Rendered, Draft: draft, CannedResponses: []string{rc.Response.ID}}, nil
		}
	}
	return Result{Text: draft, Draft: draft}, nil
}

// revise implements §4.4.2 step "(+1) Revision": rewrite the draft in the
// style of the selected template while preserving factual content.
func (c *CannedResponseGenerator) revise(ctx context.Context, draft, styleTemplate string) (string, error) {
	prompt := fmt.Sprintf("Rewrite this draft reply in the style/tone of the following example, preserving every fact in the draft:\n\nDraft: %q\n\nStyle example: %q\n\nReturn only the rewritten reply text.", draft, styleTemplate)
	var out Draft
	if _, err := c.Deps.Gen.Generate(ctx, prompt, draftSchema(), &out, llm.Hints{Temperature: 0.2}); err != nil {
		return "", err
	}
	return out.Message, nil
}
