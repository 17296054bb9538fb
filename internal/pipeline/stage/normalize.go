package stage

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/hyunw00/lectern/internal/phonetic"
	"github.com/hyunw00/lectern/pkg/provider/llm"
)

const (
	// normalizeGuardRatio rejects LLM outputs more than twice the input length.
	normalizeGuardRatio = 2.0

	// defaultRefineThreshold is the segment confidence below which the LLM
	// sub-pass is skipped: rewriting barely-audible speech invites
	// hallucination, so low-confidence segments get the deterministic passes
	// only.
	defaultRefineThreshold = 0.4
)

// NormalizeOption is a functional option for configuring a [Normalizer].
type NormalizeOption func(*Normalizer)

// WithMatcher attaches a phonetic glossary matcher applied after the
// deterministic substitutions. When nil (the default), the phonetic pass is
// skipped.
func WithMatcher(m *phonetic.Matcher) NormalizeOption {
	return func(n *Normalizer) {
		n.matcher = m
	}
}

// WithCorrections sets lecture-wide surface-form corrections applied before
// any slide-specific mapping.
func WithCorrections(corrections map[string]string) NormalizeOption {
	return func(n *Normalizer) {
		n.corrections = corrections
	}
}

// WithRefineThreshold sets the segment confidence below which the LLM
// sub-pass is skipped. Default: 0.4.
func WithRefineThreshold(threshold float64) NormalizeOption {
	return func(n *Normalizer) {
		n.refineThreshold = threshold
	}
}

// WithNormalizeLogger sets the logger used for guard warnings.
func WithNormalizeLogger(logger *slog.Logger) NormalizeOption {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// Normalizer implements the first stage. It applies three passes:
//
//  1. Deterministic substitution of lecture-wide corrections and the slide's
//     phonetic/term maps (longest mapping first so multi-word keys win).
//  2. Phonetic glossary matching over n-gram windows for misrecognitions the
//     maps do not cover.
//  3. An optional LLM pass with the normalize prompt.
//
// The LLM pass is skipped when no provider is configured, when the segment
// confidence is below the refine threshold, or when the slide carries no
// term context and the deterministic passes changed nothing. This is the
// only stage that can succeed without the LLM collaborator.
type Normalizer struct {
	provider        llm.Provider
	matcher         *phonetic.Matcher
	corrections     map[string]string
	refineThreshold float64
	logger          *slog.Logger
}

var _ Executor = (*Normalizer)(nil)

// NewNormalizer constructs the Normalize stage. provider may be nil, in
// which case only the deterministic passes run.
func NewNormalizer(provider llm.Provider, opts ...NormalizeOption) *Normalizer {
	n := &Normalizer{
		provider:        provider,
		refineThreshold: defaultRefineThreshold,
		logger:          slog.Default(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Name implements [Executor].
func (n *Normalizer) Name() Name { return Normalize }

// Transform implements [Executor].
func (n *Normalizer) Transform(ctx context.Context, in Input) (Output, error) {
	text := in.Text

	// Pass 1: deterministic mappings.
	text, substituted := applyMappings(text, n.corrections, in.Slide.PhoneticMap, in.Slide.TermMap)

	// Pass 2: phonetic glossary matching.
	if n.matcher != nil {
		corrected, hits := n.applyPhonetic(text)
		text = corrected
		substituted = substituted || hits > 0
	}

	if !n.shouldRefine(in, substituted) {
		return Output{Text: text}, nil
	}

	refined, err := complete(ctx, n.provider,
		normalizePrompt,
		userPayload(in.Slide, "Transcript", text),
		0.1,
		scaledTokens(len(text), 1.5, 200, 1000),
	)
	if err != nil {
		return Output{}, err
	}
	if refined == "" {
		return Output{Text: text}, nil
	}
	if !withinLengthGuard(text, refined, normalizeGuardRatio) {
		n.logger.Warn("normalize output rejected by length guard",
			"input_len", len(text),
			"output_len", len(refined))
		return Output{Text: text}, nil
	}
	return Output{Text: refined}, nil
}

// shouldRefine decides whether the LLM sub-pass runs.
func (n *Normalizer) shouldRefine(in Input, substituted bool) bool {
	if n.provider == nil {
		return false
	}
	if in.AvgConfidence > 0 && in.AvgConfidence < n.refineThreshold {
		return false
	}
	// Without slide term context or any deterministic hit there is nothing
	// the prompt can anchor corrections to.
	hasContext := len(in.Slide.Terms) > 0 || len(in.Slide.TermMap) > 0 || len(in.Slide.PhoneticMap) > 0
	return hasContext || substituted
}

// applyPhonetic walks n-gram windows over the text, replacing windows that
// the glossary matcher aligns to a canonical term. At each position the
// longest matching window wins so multi-word terms take precedence over
// partial single-word matches.
func (n *Normalizer) applyPhonetic(text string) (string, int) {
	tokens := strings.Fields(text)
	maxWords := n.matcher.MaxWords()
	if len(tokens) == 0 || maxWords == 0 {
		return text, 0
	}

	var output []string
	hits := 0

	i := 0
	for i < len(tokens) {
		maxN := maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for w := maxN; w >= 1; w-- {
			window := strings.Join(tokens[i:i+w], " ")
			term, _, ok := n.matcher.Match(window)
			if !ok {
				continue
			}
			output = append(output, strings.Fields(term)...)
			hits++
			i += w
			matched = true
			break
		}
		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), hits
}

// applyMappings substitutes every key of every map with its canonical value,
// longest keys first so multi-word mappings are not shadowed by their
// prefixes. Returns the rewritten text and whether anything changed.
func applyMappings(text string, maps ...map[string]string) (string, bool) {
	type mapping struct{ from, to string }
	var all []mapping
	for _, m := range maps {
		for k, v := range m {
			if k == "" || k == v {
				continue
			}
			all = append(all, mapping{from: k, to: v})
		}
	}
	if len(all) == 0 {
		return text, false
	}

	// Longest first.
	sort.Slice(all, func(i, j int) bool {
		return len(all[i].from) > len(all[j].from)
	})

	changed := false
	for _, m := range all {
		if strings.Contains(text, m.from) {
			text = strings.ReplaceAll(text, m.from, m.to)
			changed = true
		}
	}
	return text, changed
}
