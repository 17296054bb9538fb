// Package session owns the live lecture lifecycle: it wires the STT stream,
// the segment buffer, and the refinement pipeline together, persists the
// resulting notes, and keeps a crash-safe journal of everything captured.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyunw00/lectern/internal/notestore"
	"github.com/hyunw00/lectern/internal/observe"
	"github.com/hyunw00/lectern/internal/phonetic"
	"github.com/hyunw00/lectern/internal/pipeline"
	"github.com/hyunw00/lectern/internal/segment"
	"github.com/hyunw00/lectern/internal/termctx"
	"github.com/hyunw00/lectern/pkg/provider/llm"
	"github.com/hyunw00/lectern/pkg/provider/stt"
)

// defaultDrainTimeout bounds how long Stop waits for the pipeline to finish
// the trailing segment and in-flight runs before cancelling them.
const defaultDrainTimeout = 30 * time.Second

// defaultKeywordBoost is the phrase-boost weight handed to the STT stream
// for glossary terms.
const defaultKeywordBoost = 3

// ErrNotRunning is returned by operations that require a started session.
var ErrNotRunning = errors.New("session: not running")

// Config configures a [Controller].
type Config struct {
	// Terms is the pre-session term context. Required.
	Terms *termctx.Context

	// STT delivers the live transcript. Required.
	STT stt.Provider

	// LLM backs the refinement stages. Required.
	LLM llm.Provider

	// Store persists the session and its notes. Defaults to an in-memory
	// store if nil.
	Store notestore.Store

	// Journal, if non-nil, records accepted fragments, transitions, and
	// finalized segments for crash recovery.
	Journal *Journal

	// Stream configures the STT connection.
	SampleRate int
	Language   string

	// Pipeline tunables, applied over the orchestrator defaults.
	MaxInFlight  int
	StageTimeout time.Duration
	DrainTimeout time.Duration
	Retry        pipeline.RetryConfig
	RecentWindow int

	// Logger defaults to [slog.Default]; Metrics to [observe.DefaultMetrics].
	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Controller drives one lecture session from capture start to export-ready
// notes. Create with [NewController], then Start, feed audio and slide keys,
// and Stop. All methods are safe for concurrent use.
type Controller struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observe.Metrics

	mu        sync.Mutex
	running   bool
	stopped   bool
	sessionID string
	startedAt time.Time

	stream    stt.Stream
	clock     *segment.SlideClock
	buffer    *segment.Buffer
	orch      *pipeline.Orchestrator
	collector *pipeline.Collector

	cancel context.CancelFunc
	g      *errgroup.Group
}

// NewController validates cfg and creates a [Controller]. Missing term
// context or providers is fatal: a session cannot start without them.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Terms == nil {
		return nil, errors.New("session: term context is required")
	}
	if cfg.STT == nil {
		return nil, errors.New("session: stt provider is required")
	}
	if cfg.LLM == nil {
		return nil, errors.New("session: llm provider is required")
	}
	if cfg.Store == nil {
		cfg.Store = notestore.NewMemStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Controller{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// SessionID returns the persisted session's ID, empty before Start.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start opens the STT stream and launches the capture and refinement loops.
// It returns once everything is running; the loops stop via [Controller.Stop].
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.stopped {
		return errors.New("session: already started")
	}

	sess := &notestore.Session{
		LectureTitle: c.cfg.Terms.Title(),
		StartedAt:    time.Now(),
	}
	if err := c.cfg.Store.CreateSession(ctx, sess); err != nil {
		return fmt.Errorf("session: create session record: %w", err)
	}
	c.sessionID = sess.ID
	c.startedAt = sess.StartedAt

	stream, err := c.cfg.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: c.cfg.SampleRate,
		Language:   c.cfg.Language,
		Keywords:   c.cfg.Terms.KeywordBoosts(defaultKeywordBoost),
	})
	if err != nil {
		return fmt.Errorf("session: start stt stream: %w", err)
	}
	c.stream = stream

	c.clock = segment.NewSlideClock(c.cfg.Terms.MaxIndex())
	c.buffer = segment.NewBuffer(c.clock.Current(),
		segment.WithLogger(c.logger),
		segment.WithMetrics(c.metrics),
	)

	matcher := phonetic.New(c.cfg.Terms.Glossary())
	orch, err := pipeline.New(pipeline.Config{
		Stages:       pipeline.StageChain(c.cfg.LLM, matcher, c.cfg.Terms, c.logger),
		Terms:        c.cfg.Terms,
		MaxInFlight:  c.cfg.MaxInFlight,
		StageTimeout: c.cfg.StageTimeout,
		DrainTimeout: c.cfg.DrainTimeout,
		Retry:        c.cfg.Retry,
		RecentWindow: c.cfg.RecentWindow,
		Logger:       c.logger,
		Metrics:      c.metrics,
	})
	if err != nil {
		stream.Close()
		return err
	}
	c.orch = orch
	c.collector = pipeline.NewCollector()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	g, runCtx := errgroup.WithContext(runCtx)
	c.g = g

	// Final fragments feed the segment buffer; the journal sees each
	// accepted fragment first.
	g.Go(func() error {
		for f := range stream.Finals() {
			if c.cfg.Journal != nil {
				c.cfg.Journal.RecordFragment(runCtx, f)
			}
			if err := c.buffer.OnFragment(f); err != nil {
				return nil // buffer closed, session is stopping
			}
		}
		return nil
	})

	// Finalized segments flow to the orchestrator, journaled on the way.
	segs := make(chan segment.FinalizedSegment)
	g.Go(func() error {
		defer close(segs)
		for s := range c.buffer.Segments() {
			c.metrics.SegmentsFinalized.Add(runCtx, 1)
			if c.cfg.Journal != nil {
				c.cfg.Journal.RecordSegment(runCtx, s)
			}
			segs <- s
		}
		return nil
	})

	g.Go(func() error {
		c.orch.Process(runCtx, segs)
		return nil
	})

	// Terminal notes are collected for export and persisted as they land.
	g.Go(func() error {
		for n := range c.orch.Notes() {
			c.collector.Add(n)
			stored := notestore.FromPipeline(sess.ID, n)
			if err := c.cfg.Store.SaveNote(runCtx, &stored); err != nil {
				c.logger.Error("failed to persist note",
					"slide", n.SlideIndex,
					"seq", n.Seq,
					"error", err,
				)
			}
		}
		return nil
	})

	c.running = true
	c.logger.Info("session started",
		"session_id", sess.ID,
		"lecture", sess.LectureTitle,
		"slides", c.cfg.Terms.MaxIndex()+1,
	)
	return nil
}

// SendAudio forwards a chunk of captured audio to the STT stream.
func (c *Controller) SendAudio(chunk []byte) error {
	c.mu.Lock()
	stream := c.stream
	running := c.running
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	return stream.SendAudio(chunk)
}

// Partials exposes interim transcripts for UI preview. They never enter the
// segment buffer.
func (c *Controller) Partials() (<-chan stt.Fragment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil, ErrNotRunning
	}
	return c.stream.Partials(), nil
}

// Advance moves to the next slide, closing the current segment.
func (c *Controller) Advance(ctx context.Context) error {
	return c.transition(ctx, func() (segment.Transition, bool) { return c.clock.Advance() })
}

// Retreat moves back one slide, closing the current segment.
func (c *Controller) Retreat(ctx context.Context) error {
	return c.transition(ctx, func() (segment.Transition, bool) { return c.clock.Retreat() })
}

// Flush finalizes the current slide's accumulated speech without moving the
// clock, producing an extra note for long-dwell slides.
func (c *Controller) Flush(ctx context.Context) error {
	return c.transition(ctx, func() (segment.Transition, bool) { return c.clock.Flush(), true })
}

func (c *Controller) transition(ctx context.Context, move func() (segment.Transition, bool)) error {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	t, ok := move()
	if !ok {
		c.logger.Debug("slide move rejected at boundary", "current", c.clock.Current())
		return nil
	}
	if c.cfg.Journal != nil {
		c.cfg.Journal.RecordTransition(ctx, t)
	}
	return c.buffer.OnTransition(t)
}

// CurrentSlide returns the active slide index.
func (c *Controller) CurrentSlide() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock == nil {
		return 0
	}
	return c.clock.Current()
}

// Stop ends the session: the STT stream is closed, buffered speech is
// finalized, and the pipeline gets the configured drain window to finish the
// trailing segment and any in-flight runs. Cancellation only fires when the
// drain window elapses, discarding whatever has not started by then. Returns
// after all notes reached the collector and the session record is marked
// finished. Safe to call once.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.running = false
	c.stopped = true
	stream := c.stream
	c.mu.Unlock()

	c.logger.Info("stopping session", "session_id", c.sessionID)

	if err := stream.Close(); err != nil {
		c.logger.Warn("stt stream close failed", "error", err)
	}
	// Flush trailing speech. The session goroutines wind down on their own
	// as the upstream channels close, so the trailing segment is dispatched
	// and refined like any other before the pipeline exits.
	c.buffer.Close()

	drain := c.cfg.DrainTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}
	waited := make(chan error, 1)
	go func() { waited <- c.g.Wait() }()
	var waitErr error
	select {
	case waitErr = <-waited:
	case <-time.After(drain):
		c.logger.Warn("drain window elapsed, cancelling remaining runs",
			"drain_timeout", drain)
		c.cancel()
		waitErr = <-waited
	}
	c.cancel()
	if waitErr != nil {
		c.logger.Warn("session loop error", "error", waitErr)
	}

	if err := c.cfg.Store.FinishSession(ctx, c.sessionID, time.Now()); err != nil {
		return fmt.Errorf("session: finish session record: %w", err)
	}
	c.logger.Info("session stopped",
		"session_id", c.sessionID,
		"notes", c.collector.Len(),
	)
	return nil
}

// Notes returns the collected terminal notes in export order. Complete only
// after [Controller.Stop] has returned.
func (c *Controller) Notes() []pipeline.Note {
	return c.collector.Notes()
}
