package compose

import (
	"context"
	"strings"
	"time"

	"github.com/parlant-engine/convengine/internal/event"
	"github.com/parlant-engine/convengine/internal/model"
)

// Chunk is one blank-line-delimited piece of a composed reply, ready for
// emission.
type Chunk struct {
	Text  string
	Words int
}

// SplitMessage splits text on "\n\n" per §4.4.2 "Message splitting",
// dropping empty chunks.
func SplitMessage(text string) []Chunk {
	parts := strings.Split(text, "\n\n")
	out := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		out = append(out, Chunk{Text: trimmed, Words: len(strings.Fields(trimmed))})
	}
	return out
}

// PreTypingDelay is the delay before the "typing" status is emitted:
// max(0.5s, wordsJustSent/50 * 60/60 seconds) (§4.4.2).
func PreTypingDelay(wordsJustSent int) time.Duration {
	secs := float64(wordsJustSent) / 50.0
	if secs < 0.5 {
		secs = 0.5
	}
	return time.Duration(secs * float64(time.Second))
}

// PostTypingDelay is the delay after "typing" and before the next chunk is
// emitted: a base delay (1s if the next chunk has <=10 words, else 2s) plus
// nextWords/50*60/60 seconds (§4.4.2).
func PostTypingDelay(nextWords int) time.Duration {
	base := 2.0
	if nextWords <= 10 {
		base = 1.0
	}
	return time.Duration((base + float64(nextWords)/50.0) * float64(time.Second))
}

// Emit publishes result's text as one or more ordered message events per
// §4.4.2's splitting/pacing rules: a leading "typing" status announces the
// reply is on its way, then each chunk passes through hook, is emitted,
// followed by a per-chunk "ready"; between chunks a "typing" status is
// emitted again after the paced delay.
func Emit(ctx context.Context, emitter event.Emitter, sleep Sleeper, participant model.Participant, result Result, hook MessageHook) error {
	if sleep == nil {
		sleep = RealSleeper
	}
	chunks := SplitMessage(result.Text)
	if len(chunks) == 0 {
		return nil
	}

	if _, err := emitter.EmitStatus(ctx, event.StatusTyping, nil); err != nil {
		return err
	}

	for i, chunk := range chunks {
		if hook != nil {
			if hook(ctx, chunk.Text) == Bail {
				continue
			}
		}
		if _, err := emitter.EmitMessage(ctx, model.SourceAIAgent, event.MessagePayload{
			Message:         chunk.Text,
			Participant:     participant,
			Draft:           result.Draft,
			CannedResponses: result.CannedResponses,
			Tags:            result.Tags,
		}); err != nil {
			return err
		}
		if _, err := emitter.EmitStatus(ctx, event.StatusReady, nil); err != nil {
			return err
		}

		if i+1 < len(chunks) {
			sleep(ctx, PreTypingDelay(chunk.Words))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if _, err := emitter.EmitStatus(ctx, event.StatusTyping, nil); err != nil {
				return err
			}
			sleep(ctx, PostTypingDelay(chunks[i+1].Words))
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}
