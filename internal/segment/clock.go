package segment

import (
	"sync"
	"time"
)

// SlideClock tracks the currently active slide index as an explicit,
// externally-driven value and produces the [Transition] events the buffer
// consumes. The clock bounds-checks every move against the slide count known
// from the term context; out-of-range moves are rejected rather than clamped
// so a stuck hotkey cannot silently skip slides.
//
// All methods are safe for concurrent use.
type SlideClock struct {
	mu       sync.Mutex
	current  int
	maxIndex int
	now      func() time.Time
}

// NewSlideClock returns a clock positioned at slide 0 that accepts indexes
// in [0, maxIndex].
func NewSlideClock(maxIndex int) *SlideClock {
	return &SlideClock{maxIndex: maxIndex, now: time.Now}
}

// Current returns the active slide index.
func (c *SlideClock) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves to the next slide. ok is false when the clock is already at
// the last slide, in which case no transition is produced.
func (c *SlideClock) Advance() (Transition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current >= c.maxIndex {
		return Transition{}, false
	}
	c.current++
	return Transition{To: c.current, OccurredAt: c.now(), Kind: Advance}, true
}

// Retreat moves back one slide. ok is false when the clock is already at
// slide 0.
func (c *SlideClock) Retreat() (Transition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current <= 0 {
		return Transition{}, false
	}
	c.current--
	return Transition{To: c.current, OccurredAt: c.now(), Kind: Retreat}, true
}

// Flush produces a ManualFlush transition for the active slide. Always
// succeeds; the slide index does not change.
func (c *SlideClock) Flush() Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Transition{To: c.current, OccurredAt: c.now(), Kind: ManualFlush}
}
