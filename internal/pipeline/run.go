// Package pipeline runs finalized lecture segments through the ordered
// refinement chain (normalize, smooth, polish, summarize) with bounded
// concurrency across slides and strict stage ordering within a run.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/hyunw00/lectern/internal/pipeline/stage"
	"github.com/hyunw00/lectern/internal/segment"
)

// RunState is the lifecycle state of a [Run].
type RunState int

const (
	// StatePending means the run is queued but no stage has started.
	StatePending RunState = iota

	// StateRunning means a stage is currently executing.
	StateRunning

	// StateSucceeded means all four stages completed.
	StateSucceeded

	// StateFailed means a stage exhausted its attempts; the run's note
	// carries the best prior-stage output.
	StateFailed

	// StateDiscarded means the session stopped before the run started.
	StateDiscarded
)

// String returns the human-readable name of the state.
func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// RunStatus describes where a [Run] is in its lifecycle. Stage is set while
// running and on failure; Reason is set on failure.
type RunStatus struct {
	State  RunState
	Stage  stage.Name
	Reason string
}

// String renders the status for logs.
func (s RunStatus) String() string {
	switch s.State {
	case StateRunning:
		return fmt.Sprintf("running(%s)", s.Stage)
	case StateFailed:
		return fmt.Sprintf("failed(%s: %s)", s.Stage, s.Reason)
	default:
		return s.State.String()
	}
}

// Run tracks one segment's passage through the refinement chain. Its status
// and stage outputs are updated by the orchestrator worker; accessors are
// safe for concurrent use.
type Run struct {
	Segment segment.FinalizedSegment

	mu      sync.Mutex
	status  RunStatus
	outputs []string
}

// Status returns the run's current status.
func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// StageOutputs returns a copy of the successful stage outputs in stage order.
func (r *Run) StageOutputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.outputs))
	copy(out, r.outputs)
	return out
}

func (r *Run) setStatus(s RunStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Run) addOutput(text string) {
	r.mu.Lock()
	r.outputs = append(r.outputs, text)
	r.mu.Unlock()
}

// Note is the terminal artifact of a [Run], handed to the export layer.
// Notes for the same slide are concatenated at export in Seq order.
type Note struct {
	// SlideIndex is the slide the underlying segment was attributed to.
	SlideIndex int

	// Seq is the emission order of the underlying segment, unique within
	// a session.
	Seq int

	// Text is the polished note text. If the run degraded, this is the
	// last successful stage's output (or the raw segment text when the
	// first stage failed).
	Text string

	// Bullets is the ordered summary, empty if the summarize stage did
	// not complete.
	Bullets []string

	// DegradedAtStage names the stage that failed, zero for a fully
	// refined note.
	DegradedAtStage stage.Name

	// StartedAt and EndedAt bound the speech covered by the note.
	StartedAt time.Time
	EndedAt   time.Time
}

// Degraded reports whether the note carries less than fully refined output.
func (n Note) Degraded() bool {
	return n.DegradedAtStage != 0
}
