package stage

import (
	"context"
	"strings"

	"github.com/hyunw00/lectern/pkg/provider/llm"
)

// Summarizer implements the fourth stage: it distills the polished text into
// an ordered list of concise bullets.
type Summarizer struct {
	provider llm.Provider
}

var _ Executor = (*Summarizer)(nil)

// NewSummarizer constructs the Summarize stage. provider must be non-nil.
func NewSummarizer(provider llm.Provider) *Summarizer {
	return &Summarizer{provider: provider}
}

// Name implements [Executor].
func (s *Summarizer) Name() Name { return Summarize }

// Transform implements [Executor]. A blank input yields an empty bullet
// list without calling the provider.
func (s *Summarizer) Transform(ctx context.Context, in Input) (Output, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Output{Text: in.Text}, nil
	}

	raw, err := complete(ctx, s.provider,
		summarizePrompt,
		userPayload(in.Slide, "Notes", in.Text),
		0.2,
		500,
	)
	if err != nil {
		return Output{}, err
	}

	return Output{Text: in.Text, Bullets: parseBullets(raw)}, nil
}

// parseBullets splits the model output into one bullet per non-empty line,
// stripping any bullet markers the model emitted despite the prompt.
func parseBullets(raw string) []string {
	var bullets []string
	for _, line := range strings.Split(raw, "\n") {
		b := strings.TrimSpace(line)
		b = strings.TrimLeft(b, "•-·* ")
		b = strings.TrimSpace(b)
		if b != "" {
			bullets = append(bullets, b)
		}
	}
	return bullets
}
