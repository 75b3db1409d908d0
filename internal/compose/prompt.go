package compose

import (
	"fmt"
	"strings"

	"github.com/parlant-engine/convengine/internal/model"
)

// buildDraftPrompt assembles the §4.4.2 fluid-path prompt sections: general
// instructions, task description, interaction history, matched guidelines
// (ordinary + tool-enabled with rendered actions), tool results, glossary,
// capabilities, context variables, tool-insight warnings, exemplars.
func buildDraftPrompt(gctx GenerationContext) string {
	var sb strings.Builder

	sb.WriteString("You are composing a reply as agent ")
	fmt.Fprintf(&sb, "%q. ", gctx.Agent.Name)
	sb.WriteString(gctx.Agent.Description)
	sb.WriteString("\nNever reveal tool names, guideline content, or internal correlation ids in the reply text.\n")

	sb.WriteString("\nInteraction history:\n")
	for _, ev := range gctx.Interaction {
		if ev.Kind != model.EventKindMessage {
			continue
		}
		fmt.Fprintf(&sb, "- [%s] %v\n", ev.Source, ev.Data["message"])
	}

	sb.WriteString("\nGuidelines to honor this turn:\n")
	for _, m := range gctx.OrdinaryMatches {
		fmt.Fprintf(&sb, "- %s (%s)\n", renderAction(m.Guideline), m.Guideline.Condition)
	}
	for _, m := range gctx.ToolEnabledMatches {
		fmt.Fprintf(&sb, "- %s (%s)\n", renderAction(m.Guideline), m.Guideline.Condition)
	}

	if len(gctx.ToolResults) > 0 {
		sb.WriteString("\nTool results available this turn:\n")
		for _, r := range gctx.ToolResults {
			fmt.Fprintf(&sb, "- %s -> %v\n", r.Call.ToolID.String(), r.Data)
		}
	}

	if len(gctx.GlossaryTerms) > 0 {
		sb.WriteString("\nGlossary:\n")
		for _, t := range gctx.GlossaryTerms {
			fmt.Fprintf(&sb, "- %s: %s\n", t.Term, t.Definition)
		}
	}

	if len(gctx.Capabilities) > 0 {
		sb.WriteString("\nAgent capabilities:\n")
		for _, c := range gctx.Capabilities {
			fmt.Fprintf(&sb, "- %s: %s\n", c.Name, c.Description)
		}
	}

	if len(gctx.ContextVariables) > 0 {
		sb.WriteString("\nContext variables:\n")
		for _, v := range gctx.ContextVariables {
			fmt.Fprintf(&sb, "- %s = %v\n", v.Key, v.Value)
		}
	}

	if len(gctx.ToolInsights.MissingData) > 0 || len(gctx.ToolInsights.InvalidData) > 0 {
		sb.WriteString("\nInformation the engine still needs from the customer:\n")
		for _, p := range gctx.ToolInsights.MissingData {
			fmt.Fprintf(&sb, "- ask for %q (needed by %s)\n", p.ParamName, p.ToolID.String())
		}
		for _, p := range gctx.ToolInsights.InvalidData {
			fmt.Fprintf(&sb, "- ask to clarify %q (needed by %s)\n", p.ParamName, p.ToolID.String())
		}
	}

	sb.WriteString("\nExemplars of tone: concise, warm, never mentioning internal machinery.\n")
	sb.WriteString("\nRespond with the draft reply text. Separate distinct thoughts with a blank line.\n")
	return sb.String()
}

func renderAction(g model.Guideline) string {
	if g.Action == "" {
		return "observe: " + g.Condition
	}
	return g.Action
}
