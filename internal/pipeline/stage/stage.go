// Package stage defines the four ordered text-transformation stages applied
// to every finalized segment, behind a single Executor abstraction.
//
// The fixed sequence is Normalize → Smooth → Polish → Summarize. Each stage
// receives the previous stage's output (or the raw segment text for
// Normalize) plus read-only slide context, and produces either a replacement
// text (Summarize: a bullet list) or an error carrying a
// Transient/Permanent failure class through [llm.ProviderError].
package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyunw00/lectern/internal/termctx"
	"github.com/hyunw00/lectern/pkg/provider/llm"
)

// Name identifies one of the four pipeline stages.
type Name int

const (
	// Normalize rewrites phonetic transliterations and misrecognized surface
	// forms to canonical terms using the slide's term maps.
	Normalize Name = iota + 1
	// Smooth proofreads the normalized text and fixes batch-join artifacts,
	// with a short window of preceding slides' output for continuity.
	Smooth
	// Polish reformats the text into structured, formal note style.
	Polish
	// Summarize produces an ordered list of concise bullets.
	Summarize
)

// String implements fmt.Stringer.
func (n Name) String() string {
	switch n {
	case Normalize:
		return "normalize"
	case Smooth:
		return "smooth"
	case Polish:
		return "polish"
	case Summarize:
		return "summarize"
	default:
		return fmt.Sprintf("Name(%d)", int(n))
	}
}

// Input is the read-only payload handed to a stage invocation.
type Input struct {
	// Text is the previous stage's output, or the raw segment text for the
	// first stage.
	Text string

	// Slide is the term context for the segment's slide. The zero Slide is
	// used when the term context has no entry for the slide index.
	Slide termctx.Slide

	// AvgConfidence is the recognition confidence carried over from the
	// segment. Stages may skip expensive work for low-confidence text.
	AvgConfidence float64

	// RecentNotes is a short window of immediately preceding slides' polished
	// output, oldest first. Only the Smooth stage reads it; stages must never
	// mutate a prior slide's stored note through it.
	RecentNotes []string
}

// Output is the result of a successful stage invocation.
type Output struct {
	// Text is the replacement text. Empty for Summarize.
	Text string

	// Bullets is the ordered summary bullet list. Only Summarize fills it.
	Bullets []string
}

// Executor performs one transformation. Implementations are safe for
// concurrent use; the orchestrator invokes the same executor from multiple
// pipeline runs.
type Executor interface {
	// Name reports which stage this executor implements.
	Name() Name

	// Transform applies the stage to in and returns the transformed output.
	// Failures surface as errors classified through [llm.KindOf]; the
	// orchestrator decides whether to retry.
	Transform(ctx context.Context, in Input) (Output, error)
}

// complete performs one LLM call with the given system prompt and user
// payload, returning the trimmed response text.
func complete(ctx context.Context, p llm.Provider, system, user string, temperature float64, maxTokens int) (string, error) {
	resp, err := p.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: user}},
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// scaledTokens converts an input character length into a bounded max-token
// budget: inputLen*factor clamped to [lo, hi].
func scaledTokens(inputLen int, factor float64, lo, hi int) int {
	n := int(float64(inputLen) * factor)
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// withinLengthGuard reports whether an LLM output is acceptably sized
// relative to its input. Outputs longer than maxRatio times the input are
// treated as hallucinations and rejected in favor of the input text.
func withinLengthGuard(input, output string, maxRatio float64) bool {
	return float64(len(output)) <= float64(len(input))*maxRatio
}

// userPayload assembles the user message for a stage call: the slide context
// block (when present) followed by the labelled text.
func userPayload(slide termctx.Slide, label, text string) string {
	sctx := slide.PromptContext()
	if strings.TrimSpace(sctx) == "" {
		return fmt.Sprintf("%s:\n%s", label, text)
	}
	return fmt.Sprintf("Slide context:\n%s\n%s:\n%s", sctx, label, text)
}
