package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hyunw00/lectern/pkg/provider/llm"
)

// smoothGuardRatio rejects LLM outputs more than 1.5 times the input length;
// smoothing is a light pass and large growth means the model added content.
const smoothGuardRatio = 1.5

// Smoother implements the second stage: a light proofreading pass over the
// normalized text that fixes punctuation and batch-join seams. It may read a
// short window of the immediately preceding slides' polished output for
// continuity but never writes to it.
type Smoother struct {
	provider llm.Provider
	logger   *slog.Logger
}

var _ Executor = (*Smoother)(nil)

// NewSmoother constructs the Smooth stage. provider must be non-nil.
func NewSmoother(provider llm.Provider, logger *slog.Logger) *Smoother {
	if logger == nil {
		logger = slog.Default()
	}
	return &Smoother{provider: provider, logger: logger}
}

// Name implements [Executor].
func (s *Smoother) Name() Name { return Smooth }

// Transform implements [Executor].
func (s *Smoother) Transform(ctx context.Context, in Input) (Output, error) {
	user := userPayload(in.Slide, "Text", in.Text)
	if len(in.RecentNotes) > 0 {
		var b strings.Builder
		b.WriteString("Preceding slides' notes (context only, do not repeat):\n")
		for _, note := range in.RecentNotes {
			fmt.Fprintf(&b, "%s\n", note)
		}
		b.WriteString("\n")
		b.WriteString(user)
		user = b.String()
	}

	smoothed, err := complete(ctx, s.provider,
		smoothPrompt,
		user,
		0.15,
		scaledTokens(len(in.Text), 1.3, 200, 2000),
	)
	if err != nil {
		return Output{}, err
	}
	if smoothed == "" {
		return Output{Text: in.Text}, nil
	}
	if !withinLengthGuard(in.Text, smoothed, smoothGuardRatio) {
		s.logger.Warn("smooth output rejected by length guard",
			"input_len", len(in.Text),
			"output_len", len(smoothed))
		return Output{Text: in.Text}, nil
	}
	return Output{Text: smoothed}, nil
}
