package termctx

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// slideYAML is the on-disk shape of a single slide entry.
type slideYAML struct {
	Index       int               `yaml:"index"`
	Title       string            `yaml:"title"`
	Terms       []string          `yaml:"terms"`
	TermMap     map[string]string `yaml:"term_map"`
	PhoneticMap map[string]string `yaml:"phonetic_map"`
}

// fileYAML is the on-disk shape of a term context file.
type fileYAML struct {
	LectureTitle string            `yaml:"lecture_title"`
	Corrections  map[string]string `yaml:"corrections"`
	Slides       []slideYAML       `yaml:"slides"`
}

// Load reads the YAML term context file at path and returns a validated
// [Context]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("termctx: open %q: %w", path, err)
	}
	defer f.Close()

	ctx, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("termctx: parse %q: %w", path, err)
	}
	return ctx, nil
}

// LoadFromReader decodes a YAML term context from r and validates the result.
// Useful in tests where contexts are constructed from string literals.
func LoadFromReader(r io.Reader) (*Context, error) {
	var raw fileYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("termctx: decode yaml: %w", err)
	}
	return build(raw)
}

// New constructs a Context directly from slides, for callers that obtain the
// term context from the pre-analysis collaborator instead of a file.
func New(title string, corrections map[string]string, slides []Slide) (*Context, error) {
	raw := fileYAML{LectureTitle: title, Corrections: corrections}
	for _, s := range slides {
		raw.Slides = append(raw.Slides, slideYAML{
			Index:       s.Index,
			Title:       s.Title,
			Terms:       s.Terms,
			TermMap:     s.TermMap,
			PhoneticMap: s.PhoneticMap,
		})
	}
	return build(raw)
}

// build validates the raw file shape and assembles a Context.
// It returns a joined error listing all validation failures found.
func build(raw fileYAML) (*Context, error) {
	var errs []error

	if len(raw.Slides) == 0 {
		errs = append(errs, errors.New("at least one slide is required"))
	}

	slides := make(map[int]Slide, len(raw.Slides))
	maxIndex := 0
	for i, s := range raw.Slides {
		prefix := fmt.Sprintf("slides[%d]", i)
		if s.Index < 0 {
			errs = append(errs, fmt.Errorf("%s.index %d is negative", prefix, s.Index))
			continue
		}
		if _, dup := slides[s.Index]; dup {
			errs = append(errs, fmt.Errorf("%s.index %d is a duplicate", prefix, s.Index))
			continue
		}
		slides[s.Index] = Slide{
			Index:       s.Index,
			Title:       s.Title,
			Terms:       s.Terms,
			TermMap:     s.TermMap,
			PhoneticMap: s.PhoneticMap,
		}
		if s.Index > maxIndex {
			maxIndex = s.Index
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("termctx: %w", err)
	}

	corrections := raw.Corrections
	if corrections == nil {
		corrections = map[string]string{}
	}

	return &Context{
		title:       raw.LectureTitle,
		slides:      slides,
		corrections: corrections,
		maxIndex:    maxIndex,
	}, nil
}
