package export

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Compile-time interface check.
var _ Writer = (*Markdown)(nil)

// Markdown renders slide notes as a markdown document.
type Markdown struct {
	// Title is the document heading, typically the lecture title.
	Title string
}

// NewMarkdown creates a markdown writer with the given document title.
func NewMarkdown(title string) *Markdown {
	return &Markdown{Title: title}
}

// WriteNotes implements [Writer].
func (m *Markdown) WriteNotes(path string, slides []SlideNotes) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %q: %w", path, err)
	}
	if err := m.Render(f, slides); err != nil {
		f.Close()
		return fmt.Errorf("export: write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %q: %w", path, err)
	}
	return nil
}

// Render writes the markdown document to w.
func (m *Markdown) Render(w io.Writer, slides []SlideNotes) error {
	var b strings.Builder

	if m.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", m.Title)
	}

	for _, slide := range slides {
		heading := fmt.Sprintf("Slide %d", slide.SlideIndex+1)
		if slide.Title != "" {
			heading += ": " + slide.Title
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)

		for _, sec := range slide.Sections {
			if sec.Degraded() {
				fmt.Fprintf(&b, "> ⚠ 부분 교정된 내용입니다 (%s 단계 실패). 직접 검토가 필요합니다.\n\n", sec.DegradedStage)
			}
			if sec.Text != "" {
				fmt.Fprintf(&b, "%s\n\n", sec.Text)
			}
			if len(sec.Bullets) > 0 {
				fmt.Fprintf(&b, "**요약**\n\n")
				for _, bullet := range sec.Bullets {
					fmt.Fprintf(&b, "- %s\n", bullet)
				}
				fmt.Fprintln(&b)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
