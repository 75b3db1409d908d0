package tool

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/parlant-engine/convengine/internal/model"
)

// validateArgument checks a candidate tool call's self-reported "valid"
// argument against the tool's declared JSON Schema for that parameter,
// catching cases where the model's own validity verdict doesn't hold up
// (wrong type, out-of-range value, pattern mismatch). Params with no
// declared schema are accepted as-is. The coerced value (typed per the
// schema rather than the raw string the model returned) is what gets passed
// to execution.
func validateArgument(p model.ToolParam, raw string) (any, error) {
	if len(p.JSONSchema) == 0 {
		return raw, nil
	}

	val, err := coerceArgument(raw, p.JSONSchema)
	if err != nil {
		return nil, fmt.Errorf("tool: coerce %s: %w", p.Name, err)
	}

	c := jsonschema.NewCompiler()
	resourceID := "param-" + p.Name + ".json"
	if err := c.AddResource(resourceID, p.JSONSchema); err != nil {
		return nil, fmt.Errorf("tool: add schema resource for %s: %w", p.Name, err)
	}
	compiled, err := c.Compile(resourceID)
	if err != nil {
		return nil, fmt.Errorf("tool: compile schema for %s: %w", p.Name, err)
	}
	if err := compiled.Validate(val); err != nil {
		return nil, err
	}
	return val, nil
}

// coerceArgument turns the model's string-form argument value into the JSON
// type its schema declares, so e.g. an integer parameter validates (and
// executes) as a number rather than as the string "3". A declared type of
// "string" or no declared type passes the raw string through unchanged.
func coerceArgument(raw string, schema map[string]any) (any, error) {
	switch t, _ := schema["type"].(string); t {
	case "", "string":
		return raw, nil
	default:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
