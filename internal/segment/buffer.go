package segment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyunw00/lectern/internal/observe"
	"github.com/hyunw00/lectern/pkg/provider/stt"
)

const (
	defaultQueueSize  = 256
	defaultNoiseFloor = 0.15
)

// ErrClosed is returned when an event is offered to a buffer that has been
// closed.
var ErrClosed = errors.New("segment: buffer is closed")

// Option is a functional option for configuring a [Buffer].
type Option func(*Buffer)

// WithQueueSize sets the capacity of the ingestion event queue. Default: 256.
func WithQueueSize(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithNoiseFloor sets the confidence below which final fragments are dropped
// as recognition noise. Default: 0.15.
func WithNoiseFloor(floor float64) Option {
	return func(b *Buffer) {
		b.noiseFloor = floor
	}
}

// WithLogger sets the logger used for drop warnings. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Buffer) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics sink counting dropped fragments by reason.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Buffer) {
		if m != nil {
			b.metrics = m
		}
	}
}

// event is one item on the buffer's serialized ingestion queue.
type event struct {
	frag       stt.Fragment
	transition Transition
	isFrag     bool
}

// rawSegment is the single open accumulator for the active slide visit.
// Only the event loop touches it.
type rawSegment struct {
	slideIndex int
	parts      []string
	startedAt  time.Time
	endedAt    time.Time
	confSum    float64
	count      int
}

// Buffer is the synchronization core. It consumes timestamped transcript
// fragments and slide transitions through a bounded event queue, applies them
// one at a time on a single event-loop goroutine, and emits
// [FinalizedSegment] values in slide-visit order on [Buffer.Segments].
//
// Attribution policy: a fragment is attributed to the slide that is active
// when the fragment is applied, not by comparing its timestamp against
// transition timestamps. Transitions are ground truth from the user while
// fragment timestamps are approximate, so a trailing fragment that arrives
// after a transition was applied lands on the post-transition slide.
//
// OnFragment never blocks the caller beyond a bounded constant: when the
// queue is full the oldest queued fragment is discarded with a warning.
// The consumer must drain [Buffer.Segments] until it is closed by [Buffer.Close].
type Buffer struct {
	events chan event
	out    chan FinalizedSegment
	done   chan struct{}

	queueSize  int
	noiseFloor float64
	logger     *slog.Logger
	metrics    *observe.Metrics

	closeOnce sync.Once
	loopDone  chan struct{}

	// queuedTransitions counts transitions sitting in the event queue so the
	// overflow path can tell whether popping the head could touch one.
	queuedTransitions atomic.Int64

	// Event-loop state. Touched only by run().
	open    *rawSegment
	lastEnd time.Time
	seq     int
}

// NewBuffer creates a buffer with an open accumulator at startSlide and
// starts its event loop.
func NewBuffer(startSlide int, opts ...Option) *Buffer {
	b := &Buffer{
		queueSize:  defaultQueueSize,
		noiseFloor: defaultNoiseFloor,
		logger:     slog.Default(),
		metrics:    observe.DefaultMetrics(),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	b.events = make(chan event, b.queueSize)
	b.out = make(chan FinalizedSegment, b.queueSize)
	b.open = &rawSegment{slideIndex: startSlide}

	go b.run()
	return b
}

// Segments returns the channel of finalized segments, emitted in slide-visit
// order. Closed by [Buffer.Close] after the final flush.
func (b *Buffer) Segments() <-chan FinalizedSegment { return b.out }

// OnFragment offers a final transcript fragment to the buffer. Interim
// fragments are ignored; they exist only for UI preview. When the queue is
// full, the oldest queued fragment is discarded to make room so the live
// ingestion path never stalls.
func (b *Buffer) OnFragment(f stt.Fragment) error {
	if !f.Final {
		return nil
	}
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	ev := event{frag: f, isFrag: true}
	for {
		select {
		case b.events <- ev:
			return nil
		case <-b.done:
			return ErrClosed
		default:
		}

		// Queue full: discard the oldest queued fragment to make room.
		// Transitions are ground truth and must not be discarded or
		// reordered, so while any transition is queued the incoming
		// fragment is dropped instead of popping the head.
		if b.queuedTransitions.Load() > 0 {
			b.logger.Warn("ingestion queue overflow, dropping incoming fragment",
				"text_len", len(f.Text))
			b.metrics.RecordFragmentDropped(context.Background(), "overflow")
			return nil
		}
		select {
		case old := <-b.events:
			b.logger.Warn("ingestion queue overflow, dropping oldest fragment",
				"dropped_text_len", len(old.frag.Text))
			b.metrics.RecordFragmentDropped(context.Background(), "overflow")
		default:
		}
	}
}

// OnTransition offers a slide transition to the buffer. Transitions are never
// dropped: when the queue is full this call blocks until the event loop
// catches up, which is bounded because transitions are user-paced.
func (b *Buffer) OnTransition(t Transition) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	b.queuedTransitions.Add(1)
	select {
	case b.events <- event{transition: t}:
		return nil
	case <-b.done:
		b.queuedTransitions.Add(-1)
		return ErrClosed
	}
}

// Close stops the buffer, applies any queued events, finalizes the open
// accumulator as if a final flush had been signalled, and closes the
// Segments channel. Calling Close more than once is safe and returns nil.
func (b *Buffer) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		<-b.loopDone
	})
	return nil
}

// run is the single-writer event loop. It is the only goroutine that touches
// the open accumulator, so no locking is needed.
func (b *Buffer) run() {
	defer close(b.loopDone)
	defer close(b.out)

	for {
		select {
		case ev := <-b.events:
			b.apply(ev)
		case <-b.done:
			// Drain events queued before close, then flush.
			for {
				select {
				case ev := <-b.events:
					b.apply(ev)
				default:
					b.finalize()
					return
				}
			}
		}
	}
}

// apply processes one queued event.
func (b *Buffer) apply(ev event) {
	if ev.isFrag {
		b.applyFragment(ev.frag)
		return
	}
	b.queuedTransitions.Add(-1)
	b.applyTransition(ev.transition)
}

// applyFragment appends an accepted fragment's text to the open accumulator.
func (b *Buffer) applyFragment(f stt.Fragment) {
	text := strings.TrimSpace(f.Text)
	if text == "" {
		return
	}
	if f.Confidence < b.noiseFloor {
		b.logger.Debug("dropping low-confidence fragment",
			"confidence", f.Confidence,
			"text", text)
		b.metrics.RecordFragmentDropped(context.Background(), "low_confidence")
		return
	}
	// Duplicate guard: a final fragment whose speech starts before the end
	// of the last accepted fragment re-covers the same audio span.
	if !b.lastEnd.IsZero() && f.SpokenAt.Before(b.lastEnd) {
		b.logger.Debug("dropping overlapping fragment",
			"spoken_at", f.SpokenAt,
			"last_end", b.lastEnd)
		b.metrics.RecordFragmentDropped(context.Background(), "duplicate")
		return
	}

	if b.open.count == 0 {
		b.open.startedAt = f.SpokenAt
	}
	b.open.parts = append(b.open.parts, text)
	b.open.endedAt = f.End
	b.open.confSum += f.Confidence
	b.open.count++
	b.lastEnd = f.End
}

// applyTransition closes the open accumulator, emits it when non-empty, and
// opens a fresh accumulator at the transition's target slide.
func (b *Buffer) applyTransition(t Transition) {
	b.emit(b.open)
	b.open = &rawSegment{slideIndex: t.To}
}

// finalize emits whatever the open accumulator holds at shutdown so trailing
// speech is not lost when the session stops.
func (b *Buffer) finalize() {
	b.emit(b.open)
	b.open = nil
}

// emit snapshots a closed accumulator into a FinalizedSegment and delivers
// it. Empty accumulators are dropped, never enqueued.
func (b *Buffer) emit(raw *rawSegment) {
	if raw == nil || raw.count == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(raw.parts, " "))
	if text == "" {
		return
	}

	seg := FinalizedSegment{
		SlideIndex:    raw.slideIndex,
		Seq:           b.seq,
		Text:          text,
		StartedAt:     raw.startedAt,
		EndedAt:       raw.endedAt,
		AvgConfidence: raw.confSum / float64(raw.count),
	}
	b.seq++
	b.out <- seg
}
