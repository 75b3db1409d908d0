// Package llm defines the SchematicGenerator contract (§6.2): prompt in,
// typed JSON out. The engine specifies the JSON schema for each call; the
// adapter validates the provider response against it and returns the typed
// result plus usage accounting.
package llm

import "context"

// Hints carries per-call generation parameters the caller wants honored.
type Hints struct {
	Temperature float64
}

// Usage reports token accounting for one generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Generator is implemented by every provider adapter. Result is populated
// into the Into pointer by unmarshaling the provider's JSON response;
// implementations validate the response against Schema before returning.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema map[string]any, into any, hints Hints) (Usage, error)
}
