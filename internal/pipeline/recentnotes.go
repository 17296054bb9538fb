package pipeline

import (
	"strings"
	"sync"
)

// defaultRecentWindow is how many preceding polished notes the smooth stage
// sees for continuity.
const defaultRecentWindow = 3

// RecentNotes is a bounded window of the most recently polished note texts.
// The smooth stage reads it for cross-slide continuity; it never feeds back
// into stored notes.
//
// Safe for concurrent use.
type RecentNotes struct {
	mu    sync.Mutex
	max   int
	notes []string
}

// NewRecentNotes creates a window holding up to max entries. A non-positive
// max falls back to the default window size.
func NewRecentNotes(max int) *RecentNotes {
	if max <= 0 {
		max = defaultRecentWindow
	}
	return &RecentNotes{max: max}
}

// Add appends a polished note text, evicting the oldest entry when the
// window is full. Blank texts are ignored.
func (w *RecentNotes) Add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.notes = append(w.notes, text)
	if len(w.notes) > w.max {
		w.notes = w.notes[len(w.notes)-w.max:]
	}
}

// Snapshot returns a copy of the window, oldest first.
func (w *RecentNotes) Snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, len(w.notes))
	copy(out, w.notes)
	return out
}
