// Package anthropic implements internal/llm.Generator on top of the
// Anthropic Claude Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/parlant-engine/convengine/internal/llm"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, so tests can substitute a stub.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Generator implements llm.Generator against Claude Messages.
type Generator struct {
	msg       MessagesClient
	model     string
	maxTokens int64
}

// New builds a Generator from an Anthropic Messages client and a default
// model identifier.
func New(msg MessagesClient, model string, maxTokens int64) (*Generator, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Generator{msg: msg, model: model, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Generator using the default Anthropic HTTP
// client, authenticated with apiKey. An empty apiKey is rejected; the key
// is not looked up from the environment here.
func NewFromAPIKey(apiKey, model string, maxTokens int64) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, model, maxTokens)
}

// Generate sends prompt as a single user turn, instructing the model to
// reply with JSON matching schema, validates the reply against schema, and
// unmarshals it into into.
func (g *Generator) Generate(ctx context.Context, prompt string, schema map[string]any, into any, hints llm.Hints) (llm.Usage, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return llm.Usage{}, fmt.Errorf("anthropic: marshal schema: %w", err)
	}

	fullPrompt := prompt + "\n\nRespond with a single JSON object matching this schema, no surrounding prose:\n" + string(schemaJSON)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(fullPrompt)),
		},
	}
	if hints.Temperature > 0 {
		params.Temperature = sdk.Float(hints.Temperature)
	}

	resp, err := g.msg.New(ctx, params)
	if err != nil {
		return llm.Usage{}, fmt.Errorf("anthropic: generate: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return llm.Usage{}, err
	}

	if err := validateAgainstSchema(text, schema); err != nil {
		return llm.Usage{}, fmt.Errorf("anthropic: response failed schema validation: %w", err)
	}
	if err := json.Unmarshal([]byte(text), into); err != nil {
		return llm.Usage{}, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}

	return llm.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func extractText(resp *sdk.Message) (string, error) {
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("anthropic: response contained no text block")
}

func validateAgainstSchema(jsonText string, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	var payloadDoc any
	if err := json.Unmarshal([]byte(jsonText), &payloadDoc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schema); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return compiled.Validate(payloadDoc)
}
