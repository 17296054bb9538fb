package pipeline

import (
	"sort"
	"sync"
)

// Collector accumulates terminal notes for the duration of a session.
// Runs complete out of order across slides; the collector restores a stable
// export order (slide index, then segment emission order).
//
// Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	notes []Note
}

// NewCollector creates an empty [Collector].
func NewCollector() *Collector {
	return &Collector{}
}

// Consume drains the notes channel until it is closed. Call it from a
// dedicated goroutine alongside [Orchestrator.Process].
func (c *Collector) Consume(notes <-chan Note) {
	for n := range notes {
		c.Add(n)
	}
}

// Add records one terminal note.
func (c *Collector) Add(n Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
}

// Notes returns a copy of all collected notes sorted by slide index, with
// notes for the same slide ordered by segment emission order.
func (c *Collector) Notes() []Note {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Note, len(c.notes))
	copy(out, c.notes)
	sort.Slice(out, func(i, j int) bool {
		if out[i].SlideIndex != out[j].SlideIndex {
			return out[i].SlideIndex < out[j].SlideIndex
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Len returns the number of collected notes.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notes)
}
