package compose

import (
	"fmt"
	"regexp"
	"strings"
)

// fieldPattern matches Jinja-like "{{ field_name }}" placeholders. A single
// regex-based substitution pass covers the canned-response templates'
// actual need (variable interpolation, not control flow); see DESIGN.md for
// why no third-party template engine from the pack is used here.
var fieldPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// templateFields returns every distinct field name referenced by tmpl, in
// first-appearance order.
func templateFields(tmpl string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range fieldPattern.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// renderTemplate substitutes every {{field}} placeholder in tmpl with the
// string in values, by exact field-name match. Every field returned by
// templateFields must be present in values; renderTemplate does not itself
// decide whether to discard an unresolved template (that's §4.4.2 field
// extraction's job, before rendering is attempted).
func renderTemplate(tmpl string, values map[string]string) string {
	return fieldPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := fieldPattern.FindStringSubmatch(match)
		if len(sub) != 2 {
			return match
		}
		if v, ok := values[sub[1]]; ok {
			return v
		}
		return match
	})
}

// standardField resolves a field name against the "std.*" namespace
// described in §4.4.2 step 3 (i): std.customer.name, std.agent.name,
// std.variables.*, std.missing_params.
func standardField(name string, gctx GenerationContext) (string, bool) {
	switch {
	case name == "std.customer.name":
		if gctx.Customer.Name != "" {
			return gctx.Customer.Name, true
		}
		return gctx.Customer.ID, true
	case name == "std.agent.name":
		return gctx.Agent.Name, true
	case strings.HasPrefix(name, "std.variables."):
		key := strings.TrimPrefix(name, "std.variables.")
		for _, v := range gctx.ContextVariables {
			if v.Key == key {
				return fmt.Sprintf("%v", v.Value), true
			}
		}
		return "", false
	case name == "std.missing_params":
		var names []string
		for _, p := range gctx.ToolInsights.MissingData {
			names = append(names, p.ParamName)
		}
		if len(names) == 0 {
			return "", false
		}
		return strings.Join(names, ", "), true
	default:
		return "", false
	}
}

// toolBasedField resolves a field from any tool call's canned_response_fields
// this cycle (§4.4.2 step 3 (ii)).
func toolBasedField(name string, results []toolFieldSource) (string, bool) {
	for _, r := range results {
		if v, ok := r.CannedResponseFields[name]; ok {
			return v, true
		}
	}
	return "", false
}

// toolFieldSource is the minimal shape canned-field resolution needs from a
// ToolResult.
type toolFieldSource struct {
	CannedResponseFields map[string]string
}
