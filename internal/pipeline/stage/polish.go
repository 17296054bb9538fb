package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hyunw00/lectern/pkg/provider/llm"
)

// polishGuardRatio allows the polish output to grow up to 2.5 times the
// input: paragraph structure and formal endings legitimately add length.
const polishGuardRatio = 2.5

// Polisher implements the third stage: it restructures the smoothed text
// into formal note style with paragraph breaks and 간결체 endings.
type Polisher struct {
	provider llm.Provider
	logger   *slog.Logger
}

var _ Executor = (*Polisher)(nil)

// NewPolisher constructs the Polish stage. provider must be non-nil.
func NewPolisher(provider llm.Provider, logger *slog.Logger) *Polisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Polisher{provider: provider, logger: logger}
}

// Name implements [Executor].
func (p *Polisher) Name() Name { return Polish }

// Transform implements [Executor].
func (p *Polisher) Transform(ctx context.Context, in Input) (Output, error) {
	user := in.Text
	if sctx := in.Slide.PromptContext(); strings.TrimSpace(sctx) != "" {
		user = fmt.Sprintf("[슬라이드 context]\n%s\n[강의 transcript]\n%s", sctx, in.Text)
	}

	polished, err := complete(ctx, p.provider,
		polishPrompt,
		user,
		0.3,
		scaledTokens(len(in.Text), 2, 500, 8192),
	)
	if err != nil {
		return Output{}, err
	}
	if polished == "" {
		return Output{Text: in.Text}, nil
	}
	if !withinLengthGuard(in.Text, polished, polishGuardRatio) {
		p.logger.Warn("polish output rejected by length guard",
			"input_len", len(in.Text),
			"output_len", len(polished))
		return Output{Text: in.Text}, nil
	}
	return Output{Text: polished}, nil
}
