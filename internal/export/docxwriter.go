package export

import (
	"fmt"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	docxFont      = "Malgun Gothic"
	docxFontSize  = 11
	docxTitleSize = 16
	docxSlideSize = 14
)

// Compile-time interface check.
var _ Writer = (*Docx)(nil)

// Docx renders slide notes as a Word document.
type Docx struct {
	// Title is the document heading, typically the lecture title.
	Title string
}

// NewDocx creates a docx writer with the given document title.
func NewDocx(title string) *Docx {
	return &Docx{Title: title}
}

// WriteNotes implements [Writer].
func (d *Docx) WriteNotes(path string, slides []SlideNotes) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("export: new docx: %w", err)
	}

	if d.Title != "" {
		addRun(doc.AddParagraph(""), d.Title, true, docxTitleSize)
		doc.AddParagraph("")
	}

	for _, slide := range slides {
		heading := fmt.Sprintf("Slide %d", slide.SlideIndex+1)
		if slide.Title != "" {
			heading += ": " + slide.Title
		}
		addRun(doc.AddParagraph(""), heading, true, docxSlideSize)

		for _, sec := range slide.Sections {
			if sec.Degraded() {
				marker := fmt.Sprintf("⚠ 부분 교정된 내용입니다 (%s 단계 실패). 직접 검토가 필요합니다.", sec.DegradedStage)
				addRun(doc.AddParagraph(""), marker, true, docxFontSize)
			}
			if sec.Text != "" {
				addRun(doc.AddParagraph(""), sec.Text, false, docxFontSize)
			}
			if len(sec.Bullets) > 0 {
				addRun(doc.AddParagraph(""), "요약", true, docxFontSize)
				for _, bullet := range sec.Bullets {
					addRun(doc.AddParagraph(""), "• "+bullet, false, docxFontSize)
				}
			}
			doc.AddParagraph("")
		}
	}

	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("export: save %q: %w", path, err)
	}
	return nil
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(docxFont).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
