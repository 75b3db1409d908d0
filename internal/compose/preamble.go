package compose

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/parlant-engine/convengine/internal/event"
	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
)

// fixedExemplars are the short bridging phrases a non-strict preamble picks
// from (§4.4.1: "the LLM generates a short phrase from a fixed exemplar
// list").
var fixedExemplars = []string{
	"One moment, let me check on that.",
	"Give me just a second.",
	"Let me take a look.",
	"On it, one moment.",
}

// PreambleRequired implements the §4.4.1 policy: required iff this is
// iteration 0, the last agent message was not itself a preamble, and either
// there have been at most 2 prior wait cycles or the last two agent wait
// times were each at least 5 seconds.
func PreambleRequired(iteration int, lastMessageWasPreamble bool, previousWaitTimes []time.Duration) bool {
	if iteration != 0 {
		return false
	}
	if lastMessageWasPreamble {
		return false
	}
	if len(previousWaitTimes) <= 2 {
		return true
	}
	n := len(previousWaitTimes)
	last2 := previousWaitTimes[n-2:]
	return last2[0] >= 5*time.Second && last2[1] >= 5*time.Second
}

// Sleeper abstracts time.Sleep so tests can inject a fast/deterministic
// clock without real delays.
type Sleeper func(ctx context.Context, d time.Duration)

// RealSleeper sleeps for real, honoring context cancellation.
func RealSleeper(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// PreambleGenerator emits the optional bridging message described in
// §4.4.1.
type PreambleGenerator struct {
	Deps    Dependencies
	Mode    model.CompositionMode
	Sleep   Sleeper
	Rand    *rand.Rand
	Participant model.Participant
}

func (p *PreambleGenerator) sleeper() Sleeper {
	if p.Sleep != nil {
		return p.Sleep
	}
	return RealSleeper
}

func (p *PreambleGenerator) rng() *rand.Rand {
	if p.Rand != nil {
		return p.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func uniform(r *rand.Rand, lo, hi float64) time.Duration {
	return time.Duration((lo + r.Float64()*(hi-lo)) * float64(time.Second))
}

// Run performs the full preamble sequence: an initial pacing delay, the
// bridging message emission, a second pacing delay, then the first
// "processing: Interpreting" status event. It returns Bail when ctx is done
// after either pacing delay; a failed generation or emission is logged and
// does not cause Bail.
func (p *PreambleGenerator) Run(ctx context.Context, gctx GenerationContext) HookOutcome {
	r := p.rng()
	p.sleeper()(ctx, uniform(r, 1.5, 2.0))
	if ctx.Err() != nil {
		return Bail
	}

	text, err := p.generate(ctx, gctx, r)
	if err != nil {
		p.Deps.Logger.Warn(ctx, "preamble generation failed", "error", err.Error())
	} else if text != "" && p.Deps.Emitter != nil {
		_, emitErr := p.Deps.Emitter.EmitMessage(ctx, model.SourceAIAgent, event.MessagePayload{
			Message:     text,
			Participant: p.Participant,
			Tags:        []string{"preamble"},
		})
		if emitErr != nil {
			p.Deps.Logger.Warn(ctx, "preamble emission failed", "error", emitErr.Error())
		}
	}

	p.sleeper()(ctx, uniform(r, 0.5, 1.5))
	if ctx.Err() != nil {
		return Bail
	}
	if p.Deps.Emitter != nil {
		_, _ = p.Deps.Emitter.EmitStatus(ctx, event.StatusProcessing, map[string]any{"stage": "Interpreting"})
	}
	return Continue
}

// generate produces the bridging text: a verbatim pick among preamble-tagged
// canned responses in CannedStrict mode, or an LLM-generated short phrase
// from the fixed exemplar list otherwise.
func (p *PreambleGenerator) generate(ctx context.Context, gctx GenerationContext, r *rand.Rand) (string, error) {
	if p.Mode == model.CompositionCannedStrict {
		return p.generateStrict(ctx, gctx, r)
	}
	return p.generateExemplar(ctx, r)
}

func (p *PreambleGenerator) generateStrict(ctx context.Context, gctx GenerationContext, r *rand.Rand) (string, error) {
	templates, err := p.Deps.CannedResponses.FindByTag(ctx, "preamble")
	if err != nil {
		return "", fmt.Errorf("compose: load preamble templates: %w", err)
	}
	if len(templates) == 0 {
		return "", nil
	}
	shuffled := append([]model.CannedResponse(nil), templates...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	prompt := "Pick exactly one of the following preamble phrases verbatim, matching the tone of this conversation:\n"
	for _, t := range shuffled {
		prompt += "- " + t.Template + "\n"
	}
	var sel selection
	if _, err := p.Deps.Gen.Generate(ctx, prompt, selectionSchema(), &sel, llm.Hints{Temperature: 0.3}); err != nil {
		return "", err
	}
	for _, t := range shuffled {
		if t.ID == sel.CandidateID {
			return t.Template, nil
		}
	}
	return shuffled[0].Template, nil
}

func (p *PreambleGenerator) generateExemplar(ctx context.Context, r *rand.Rand) (string, error) {
	prompt := "Generate a short, natural bridging phrase (a few words) acknowledging the customer while we look into their request. Examples:\n"
	for _, ex := range fixedExemplars {
		prompt += "- " + ex + "\n"
	}
	var d Draft
	if _, err := p.Deps.Gen.Generate(ctx, prompt, draftSchema(), &d, llm.Hints{Temperature: 0.4}); err != nil {
		return fixedExemplars[r.Intn(len(fixedExemplars))], nil
	}
	return d.Message, nil
}
