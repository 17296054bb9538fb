// Package termctx holds the static per-lecture term context: for every slide,
// the canonical domain terms, surface-form corrections, and phonetic spellings
// that the refinement stages use to fix recognition mistakes.
//
// A Context is produced once before capture starts (by the external slide
// pre-analysis step, or loaded from a YAML file) and is read-only for the
// rest of the session, so it is shared by all pipeline runs without locking.
package termctx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyunw00/lectern/pkg/provider/stt"
)

// Slide is the term context for a single slide. Immutable after Context
// construction.
type Slide struct {
	// Index is the 0-based slide index, stable for the session.
	Index int

	// Title is the slide title, if the pre-analysis step extracted one.
	Title string

	// Terms lists canonical domain terms that appear on the slide.
	Terms []string

	// TermMap maps commonly misrecognized surface forms to canonical terms
	// (e.g., "eigen value" -> "eigenvalue").
	TermMap map[string]string

	// PhoneticMap maps phonetic transliterations to canonical terms
	// (e.g., "오스테오포로시스" -> "osteoporosis").
	PhoneticMap map[string]string
}

// PromptContext renders the slide's term context as a block suitable for
// inclusion in a stage prompt. Mappings are emitted in sorted key order so
// the block is deterministic.
func (s Slide) PromptContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Slide %d", s.Index+1)
	if s.Title != "" {
		fmt.Fprintf(&b, ": %s", s.Title)
	}
	b.WriteString("\n")

	if len(s.Terms) > 0 {
		fmt.Fprintf(&b, "Key terms: %s\n", strings.Join(s.Terms, ", "))
	}
	if len(s.PhoneticMap) > 0 {
		b.WriteString("Phonetic spellings heard in speech and their intended terms:\n")
		for _, k := range sortedKeys(s.PhoneticMap) {
			fmt.Fprintf(&b, "  %s -> %s\n", k, s.PhoneticMap[k])
		}
	}
	if len(s.TermMap) > 0 {
		b.WriteString("Common misrecognitions and their intended terms:\n")
		for _, k := range sortedKeys(s.TermMap) {
			fmt.Fprintf(&b, "  %s -> %s\n", k, s.TermMap[k])
		}
	}
	return b.String()
}

// Context is the full per-lecture term context.
type Context struct {
	title       string
	slides      map[int]Slide
	corrections map[string]string
	maxIndex    int
}

// Title returns the lecture title, if any.
func (c *Context) Title() string { return c.title }

// Slide returns the term context for the given slide index. ok is false when
// no slide with that index exists; callers that only need a best-effort
// context may use the zero Slide in that case.
func (c *Context) Slide(index int) (Slide, bool) {
	s, ok := c.slides[index]
	return s, ok
}

// MaxIndex returns the highest slide index known to the context. Used by the
// slide clock to bounds-check transitions.
func (c *Context) MaxIndex() int { return c.maxIndex }

// Corrections returns the lecture-wide surface-form corrections applied
// deterministically before any phonetic matching. The returned map must not
// be mutated.
func (c *Context) Corrections() map[string]string { return c.corrections }

// Glossary returns the deduplicated canonical terms of every slide, for
// seeding the phonetic matcher.
func (c *Context) Glossary() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, idx := range c.sortedSlideIndexes() {
		for _, t := range c.slides[idx].Terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// KeywordBoosts returns the glossary as STT keyword hints with the given
// boost intensity applied to every term.
func (c *Context) KeywordBoosts(boost float64) []stt.KeywordBoost {
	terms := c.Glossary()
	out := make([]stt.KeywordBoost, 0, len(terms))
	for _, t := range terms {
		out = append(out, stt.KeywordBoost{Keyword: t, Boost: boost})
	}
	return out
}

func (c *Context) sortedSlideIndexes() []int {
	idxs := make([]int, 0, len(c.slides))
	for i := range c.slides {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
