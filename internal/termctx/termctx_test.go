package termctx_test

import (
	"strings"
	"testing"

	"github.com/hyunw00/lectern/internal/termctx"
)

const sampleYAML = `
lecture_title: "Bone Physiology"
corrections:
  "오스테오포": "osteoporosis"
slides:
  - index: 0
    title: "Overview"
    terms: ["osteoporosis", "osteoblast"]
    phonetic_map:
      "오스테오포로시스": "osteoporosis"
  - index: 1
    title: "Remodeling"
    terms: ["osteoclast", "osteoblast"]
    term_map:
      "osteo blast": "osteoblast"
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	ctx, err := termctx.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if ctx.Title() != "Bone Physiology" {
		t.Errorf("Title = %q, want %q", ctx.Title(), "Bone Physiology")
	}
	if ctx.MaxIndex() != 1 {
		t.Errorf("MaxIndex = %d, want 1", ctx.MaxIndex())
	}

	s, ok := ctx.Slide(0)
	if !ok {
		t.Fatal("Slide(0) not found")
	}
	if s.Title != "Overview" {
		t.Errorf("slide 0 title = %q, want %q", s.Title, "Overview")
	}
	if got := s.PhoneticMap["오스테오포로시스"]; got != "osteoporosis" {
		t.Errorf("phonetic_map entry = %q, want %q", got, "osteoporosis")
	}

	if _, ok := ctx.Slide(7); ok {
		t.Error("Slide(7) should not exist")
	}

	if got := ctx.Corrections()["오스테오포"]; got != "osteoporosis" {
		t.Errorf("corrections entry = %q, want %q", got, "osteoporosis")
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := termctx.LoadFromReader(strings.NewReader("slides: []\nbogus: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown YAML key")
	}
}

func TestLoadFromReader_NoSlides(t *testing.T) {
	t.Parallel()

	_, err := termctx.LoadFromReader(strings.NewReader("lecture_title: x\n"))
	if err == nil {
		t.Fatal("expected error for empty slide list")
	}
}

func TestLoadFromReader_DuplicateIndex(t *testing.T) {
	t.Parallel()

	yaml := `
slides:
  - index: 0
  - index: 0
`
	_, err := termctx.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate slide index")
	}
}

func TestLoadFromReader_NegativeIndex(t *testing.T) {
	t.Parallel()

	yaml := `
slides:
  - index: -1
`
	_, err := termctx.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative slide index")
	}
}

func TestGlossary_Deduplicates(t *testing.T) {
	t.Parallel()

	ctx, err := termctx.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	terms := ctx.Glossary()
	want := []string{"osteoporosis", "osteoblast", "osteoclast"}
	if len(terms) != len(want) {
		t.Fatalf("Glossary = %v, want %v", terms, want)
	}
	for i, w := range want {
		if terms[i] != w {
			t.Errorf("Glossary[%d] = %q, want %q", i, terms[i], w)
		}
	}
}

func TestKeywordBoosts(t *testing.T) {
	t.Parallel()

	ctx, err := termctx.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	boosts := ctx.KeywordBoosts(5)
	if len(boosts) != 3 {
		t.Fatalf("expected 3 keyword boosts, got %d", len(boosts))
	}
	for _, b := range boosts {
		if b.Boost != 5 {
			t.Errorf("boost for %q = %g, want 5", b.Keyword, b.Boost)
		}
	}
}

func TestSlide_PromptContext(t *testing.T) {
	t.Parallel()

	s := termctx.Slide{
		Index: 1,
		Title: "Remodeling",
		Terms: []string{"osteoclast"},
		TermMap: map[string]string{
			"osteo blast": "osteoblast",
		},
		PhoneticMap: map[string]string{
			"오스테오클라스트": "osteoclast",
		},
	}

	got := s.PromptContext()
	for _, want := range []string{
		"Slide 2: Remodeling",
		"Key terms: osteoclast",
		"오스테오클라스트 -> osteoclast",
		"osteo blast -> osteoblast",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("PromptContext missing %q:\n%s", want, got)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	ctx, err := termctx.New("Lecture", nil, []termctx.Slide{{Index: 0, Terms: []string{"a"}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := ctx.Slide(0); !ok {
		t.Error("Slide(0) not found")
	}
	if ctx.Corrections() == nil {
		t.Error("Corrections should never be nil")
	}
}
