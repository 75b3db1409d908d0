package engine

import (
	"context"

	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
)

// titleDraft is the short structured output the title-generation prompt
// asks for.
type titleDraft struct {
	Title string `json:"title"`
}

func titleSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"title": map[string]any{"type": "string"}},
		"required":   []string{"title"},
	}
}

// maybeGenerateTitle implements the session-title auto-generation
// supplement: the first cycle that completes on an untitled session asks
// the LLM for a short title derived from the customer's opening message.
func (e *Engine) maybeGenerateTitle(ctx context.Context, sessionID string, lctx *model.LoadedContext) {
	if lctx.Session.Title != "" {
		return
	}
	if e.deps.Gen == nil {
		return
	}

	opening := firstCustomerMessage(lctx.Interaction)
	if opening == "" {
		return
	}

	prompt := "Summarize the following customer message as a short session title, at most six words, no trailing punctuation:\n\n" + opening

	var draft titleDraft
	if _, err := e.deps.Gen.Generate(ctx, prompt, titleSchema(), &draft, llm.Hints{Temperature: 0.2}); err != nil {
		e.deps.Logger.Warn(ctx, "engine: title generation failed", "error", err.Error())
		return
	}
	if draft.Title == "" {
		return
	}

	if err := e.deps.Sessions.SetTitle(ctx, sessionID, draft.Title); err != nil {
		e.deps.Logger.Warn(ctx, "engine: set title failed", "error", err.Error())
	}
}

func firstCustomerMessage(interaction []model.Event) string {
	for _, ev := range interaction {
		if ev.Kind == model.EventKindMessage && ev.Source == model.SourceCustomer {
			if s, ok := ev.Data["message"].(string); ok {
				return s
			}
		}
	}
	return ""
}
