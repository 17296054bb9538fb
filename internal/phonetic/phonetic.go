// Package phonetic matches misheard transcript words against the canonical
// terminology of a lecture using Double Metaphone phonetic encoding combined
// with Jaro-Winkler string similarity for ranked candidate selection.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word in the input and for each glossary term. If any code from the
//     input overlaps with any code from a term, the term becomes a phonetic
//     candidate.
//
//  2. Jaro-Winkler ranking: Among phonetic candidates, the term with the
//     highest Jaro-Winkler similarity (computed on the original strings,
//     case-insensitive) is selected, provided its score exceeds the
//     configurable phonetic threshold.
//
//     When no phonetic candidate is found, a secondary pass tests pure
//     Jaro-Winkler similarity against all terms using a higher fuzzy
//     threshold (default 0.85).
//
// Multi-word terms (e.g., "singular value decomposition") are supported: the
// matcher computes phonetic codes for each word, and ranking always measures
// the whole input against the whole term so a single shared word cannot
// carry an unrelated phrase.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// term is a precomputed glossary entry.
type term struct {
	canonical string
	lower     string
	tokens    []string
	codes     map[string]struct{}
}

// Matcher matches spoken words against a fixed glossary of lecture terms.
// All methods are safe for concurrent use; the Matcher is read-only after
// construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	terms             []term
}

// New returns a new [Matcher] over the given glossary terms. Term phonetic
// codes are precomputed once so that Match stays cheap on the hot path.
// Default thresholds are 0.70 for phonetic matches and 0.85 for fuzzy
// fallback matches.
func New(glossary []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}

	m.terms = make([]term, 0, len(glossary))
	for _, g := range glossary {
		lower := strings.ToLower(strings.TrimSpace(g))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		m.terms = append(m.terms, term{
			canonical: g,
			lower:     lower,
			tokens:    tokens,
			codes:     codesForTokens(tokens),
		})
	}
	return m
}

// MaxWords returns the number of whitespace-separated words in the longest
// glossary term, or 0 when the glossary is empty. Callers walking n-gram
// windows over an input use this as the maximum window size.
func (m *Matcher) MaxWords() int {
	max := 0
	for _, t := range m.terms {
		if n := len(t.tokens); n > max {
			max = n
		}
	}
	return max
}

// Match attempts to find the glossary term most phonetically similar to word.
//
// word may be a single word or a space-separated phrase (n-gram). When word
// contains multiple tokens, the matcher checks whether any token phonetically
// aligns with any token in a multi-word term, then ranks by Jaro-Winkler on
// the full strings.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string) (corrected string, confidence float64, matched bool) {
	if len(m.terms) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		canonical string
		score     float64
		phonetic  bool
	}

	var best candidate

	for _, t := range m.terms {
		phoneticMatch := codesOverlap(inputCodes, t.codes)

		// Best Jaro-Winkler score across several comparison strategies to
		// handle multi-word mismatches robustly.
		jwScore := bestJWScore(wordTokens, t.tokens, wordLower, t.lower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{canonical: t.canonical, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{canonical: t.canonical, score: jwScore, phonetic: false}
			}
		}
	}

	if best.canonical != "" {
		return best.canonical, best.score, true
	}
	return word, 0, false
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or contains
// no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the Jaro-Winkler similarity between the input and the
// term. The primary score is the better of the full-string comparison
// ("eigen value" vs "eigenvalue") and the space-stripped comparison
// ("eigenvalue" vs "eigen value"), so the whole input is always measured
// against the whole term.
//
// Pairwise token scores are consulted only for single-token terms, where a
// token covers the entire term. Against a multi-word term one shared token
// would otherwise award a perfect score to an unrelated phrase ("eigen value"
// vs "singular value decomposition" share only "value").
//
// longTolerance is passed as false to use standard Jaro-Winkler scoring.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(termTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	if len(termTokens) == 1 {
		for _, it := range inputTokens {
			if s := matchr.JaroWinkler(it, termTokens[0], false); s > score {
				score = s
			}
		}
	}

	return score
}
