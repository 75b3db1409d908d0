package compose

import (
	"context"
	"fmt"

	"github.com/parlant-engine/convengine/internal/llm"
)

// temperatureRamp is the §4.4.2 fluid-path retry schedule: up to 3 calls at
// increasing temperature, accepting the first response that parses and
// passes the (conservative, per spec.md §9 open question 2) adherence
// check of simply being valid JSON against the schema.
var temperatureRamp = []float64{0.1, 0.3, 0.5}

// FluidGenerator implements the Fluid composition mode: one free-text LLM
// call per attempt, no template retrieval.
type FluidGenerator struct {
	Deps Dependencies
}

// Compose implements Composer.
func (f *FluidGenerator) Compose(ctx context.Context, gctx GenerationContext) (Result, error) {
	ctx, span := f.Deps.Tracer.Start(ctx, "compose.fluid")
	defer span.End()

	prompt := buildDraftPrompt(gctx)

	var lastErr error
	for _, temp := range temperatureRamp {
		var d Draft
		_, err := f.Deps.Gen.Generate(ctx, prompt, draftSchema(), &d, llm.Hints{Temperature: temp})
		if err != nil {
			lastErr = err
			f.Deps.Logger.Warn(ctx, "fluid generation attempt failed", "temperature", temp, "error", err.Error())
			continue
		}
		return Result{Text: d.Message, Draft: d.Message}, nil
	}
	return Result{}, fmt.Errorf("compose: fluid generation exhausted all attempts: %w", lastErr)
}
