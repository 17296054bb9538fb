// Package export renders a session's terminal notes into shareable files.
// Notes are grouped per slide, with multiple runs for one slide concatenated
// in emission order, and degraded sections carry an explicit marker so the
// reader knows which slides need manual review.
package export

import (
	"sort"

	"github.com/hyunw00/lectern/internal/pipeline"
	"github.com/hyunw00/lectern/internal/termctx"
)

// Section is the rendered output of one pipeline run.
type Section struct {
	// Text is the note body.
	Text string

	// Bullets is the ordered summary, empty for degraded runs that never
	// reached the summarize stage.
	Bullets []string

	// DegradedStage names the refinement stage that failed, empty for
	// fully refined sections.
	DegradedStage string
}

// Degraded reports whether the section carries partially refined output.
func (s Section) Degraded() bool {
	return s.DegradedStage != ""
}

// SlideNotes is all note content for one slide, sections in emission order.
type SlideNotes struct {
	SlideIndex int
	Title      string
	Sections   []Section
}

// Writer renders slide notes to a file.
type Writer interface {
	WriteNotes(path string, slides []SlideNotes) error
}

// Merge groups terminal notes by slide, ordering slides by index and a
// slide's sections by segment emission order. Slide titles are resolved from
// the term context when available; terms may be nil.
func Merge(terms *termctx.Context, notes []pipeline.Note) []SlideNotes {
	ordered := make([]pipeline.Note, len(notes))
	copy(ordered, notes)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].SlideIndex != ordered[j].SlideIndex {
			return ordered[i].SlideIndex < ordered[j].SlideIndex
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	var slides []SlideNotes
	for _, n := range ordered {
		sec := Section{Text: n.Text, Bullets: n.Bullets}
		if n.Degraded() {
			sec.DegradedStage = n.DegradedAtStage.String()
		}

		if len(slides) > 0 && slides[len(slides)-1].SlideIndex == n.SlideIndex {
			last := &slides[len(slides)-1]
			last.Sections = append(last.Sections, sec)
			continue
		}

		sn := SlideNotes{SlideIndex: n.SlideIndex, Sections: []Section{sec}}
		if terms != nil {
			if slide, ok := terms.Slide(n.SlideIndex); ok {
				sn.Title = slide.Title
			}
		}
		slides = append(slides, sn)
	}
	return slides
}
