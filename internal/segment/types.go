// Package segment implements the slide synchronization core: it serializes
// two independent asynchronous event sources, final transcript fragments and
// user-driven slide transitions, into an ordered sequence of finalized,
// slide-tagged text segments.
package segment

import (
	"fmt"
	"time"
)

// TransitionKind classifies a slide transition event.
type TransitionKind int

const (
	// Advance moves to the next slide.
	Advance TransitionKind = iota
	// Retreat moves back to a previous slide.
	Retreat
	// ManualFlush finalizes the current slide's accumulated text without
	// changing slides. Used on long-dwell slides to push partial notes while
	// subsequent speech keeps accumulating for the same slide.
	ManualFlush
)

// String implements fmt.Stringer.
func (k TransitionKind) String() string {
	switch k {
	case Advance:
		return "advance"
	case Retreat:
		return "retreat"
	case ManualFlush:
		return "manual_flush"
	default:
		return fmt.Sprintf("TransitionKind(%d)", int(k))
	}
}

// Transition is a user-driven slide change signal. Transitions arrive
// asynchronously relative to transcript fragments and are treated as ground
// truth: the buffer applies them in arrival order on its event loop.
type Transition struct {
	// To is the 0-based slide index that becomes active. For ManualFlush it
	// equals the currently active index.
	To int

	// OccurredAt is when the user signalled the transition.
	OccurredAt time.Time

	// Kind classifies the transition.
	Kind TransitionKind
}

// FinalizedSegment is an immutable snapshot of one slide visit's accumulated
// text, produced when a transition or flush closes the open accumulator.
// Ownership transfers from the buffer to the pipeline; the buffer never
// touches a segment after emitting it.
type FinalizedSegment struct {
	// SlideIndex is the slide the text was spoken on, fixed when the
	// accumulator was opened. A later Retreat never moves text already
	// assigned.
	SlideIndex int

	// Seq is the emission sequence number, starting at 0. Two segments for
	// the same slide (base visit plus a later ManualFlush) are concatenated
	// at export time in Seq order.
	Seq int

	// Text is the ordered concatenation of the fragment texts, space-joined
	// and trimmed. Never empty: empty segments are dropped, not emitted.
	Text string

	// StartedAt is the SpokenAt of the first accepted fragment.
	StartedAt time.Time

	// EndedAt is the End of the last accepted fragment.
	EndedAt time.Time

	// AvgConfidence is the mean recognition confidence across the accepted
	// fragments. Downstream stages may skip LLM work for low-confidence
	// segments.
	AvgConfidence float64
}
