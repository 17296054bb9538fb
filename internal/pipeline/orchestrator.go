package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hyunw00/lectern/internal/observe"
	"github.com/hyunw00/lectern/internal/phonetic"
	"github.com/hyunw00/lectern/internal/pipeline/stage"
	"github.com/hyunw00/lectern/internal/segment"
	"github.com/hyunw00/lectern/internal/termctx"
	"github.com/hyunw00/lectern/pkg/provider/llm"
)

// Default orchestrator parameters.
const (
	defaultMaxInFlight  = 2
	defaultStageTimeout = 60 * time.Second
	defaultDrainTimeout = 30 * time.Second
)

// Config configures an [Orchestrator].
type Config struct {
	// Stages is the refinement chain, executed in order for every segment.
	// Must contain at least one executor.
	Stages []stage.Executor

	// Terms is the read-only per-slide term context. Must not be nil.
	Terms *termctx.Context

	// MaxInFlight bounds how many runs may hold an active stage call at
	// once. Defaults to 2 if zero.
	MaxInFlight int

	// StageTimeout bounds each stage attempt; exceeding it counts as a
	// transient failure. Defaults to 60s if zero.
	StageTimeout time.Duration

	// DrainTimeout bounds how long in-flight runs may keep executing after
	// the session context is cancelled. Defaults to 30s if zero.
	DrainTimeout time.Duration

	// Retry controls per-stage retry behaviour.
	Retry RetryConfig

	// RecentWindow is how many preceding polished notes the smooth stage
	// sees. Defaults to 3 if zero.
	RecentWindow int

	// Logger receives orchestrator events. Defaults to [slog.Default].
	Logger *slog.Logger

	// Metrics receives instrumentation. Defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Orchestrator consumes finalized segments and runs each through the
// refinement chain. Runs for different slides execute concurrently up to
// MaxInFlight; stages within one run are strictly sequential. A run that
// fails a stage still produces a degraded [Note] carrying the best prior
// output, so notes are never silently lost.
type Orchestrator struct {
	stages       []stage.Executor
	terms        *termctx.Context
	sem          *semaphore.Weighted
	stageTimeout time.Duration
	drainTimeout time.Duration
	retryCfg     RetryConfig
	recent       *RecentNotes
	logger       *slog.Logger
	metrics      *observe.Metrics

	notes chan Note

	mu   sync.Mutex
	runs []*Run
}

// New creates an [Orchestrator] from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if len(cfg.Stages) == 0 {
		return nil, errors.New("pipeline: at least one stage is required")
	}
	if cfg.Terms == nil {
		return nil, errors.New("pipeline: term context is required")
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	stageTimeout := cfg.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = defaultStageTimeout
	}
	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		stages:       cfg.Stages,
		terms:        cfg.Terms,
		sem:          semaphore.NewWeighted(int64(maxInFlight)),
		stageTimeout: stageTimeout,
		drainTimeout: drainTimeout,
		retryCfg:     cfg.Retry,
		recent:       NewRecentNotes(cfg.RecentWindow),
		logger:       logger,
		metrics:      metrics,
		notes:        make(chan Note),
	}, nil
}

// Notes returns the channel of terminal notes. It is closed once
// [Orchestrator.Process] returns; consumers must drain it until then.
func (o *Orchestrator) Notes() <-chan Note {
	return o.notes
}

// Runs returns a snapshot of all runs seen so far, in dispatch order.
func (o *Orchestrator) Runs() []*Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Run, len(o.runs))
	copy(out, o.runs)
	return out
}

// Process consumes segments until the channel is closed, dispatching one run
// per segment. It blocks until all dispatched runs have finished and then
// closes the notes channel.
//
// Cancelling ctx stops new runs from starting: segments still arriving are
// discarded, while in-flight runs get a bounded drain window to finish.
func (o *Orchestrator) Process(ctx context.Context, segments <-chan segment.FinalizedSegment) {
	defer close(o.notes)

	// Runs outlive ctx by at most the drain window.
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()
	go func() {
		select {
		case <-ctx.Done():
			timer := time.NewTimer(o.drainTimeout)
			defer timer.Stop()
			select {
			case <-timer.C:
				o.logger.Warn("drain window elapsed, cancelling in-flight runs")
				cancelRuns()
			case <-runCtx.Done():
			}
		case <-runCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	for seg := range segments {
		run := &Run{Segment: seg}
		o.mu.Lock()
		o.runs = append(o.runs, run)
		o.mu.Unlock()

		if err := o.sem.Acquire(ctx, 1); err != nil {
			run.setStatus(RunStatus{State: StateDiscarded})
			o.metrics.RecordRunCompleted(runCtx, "discarded")
			o.logger.Info("discarding segment, session stopped",
				"slide", seg.SlideIndex,
				"seq", seg.Seq,
			)
			continue
		}

		o.metrics.InFlightRuns.Add(runCtx, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer o.sem.Release(1)
			defer o.metrics.InFlightRuns.Add(runCtx, -1)
			o.execute(runCtx, run)
		}()
	}
	wg.Wait()
}

// execute walks the run through the stage chain. Terminal state is always
// reached and always produces exactly one note.
func (o *Orchestrator) execute(ctx context.Context, run *Run) {
	seg := run.Segment
	slide, ok := o.terms.Slide(seg.SlideIndex)
	if !ok {
		o.logger.Warn("segment references unknown slide, refining without term context",
			"slide", seg.SlideIndex,
			"seq", seg.Seq,
		)
		slide = termctx.Slide{Index: seg.SlideIndex}
	}
	recent := o.recent.Snapshot()

	text := seg.Text
	var bullets []string
	for _, ex := range o.stages {
		run.setStatus(RunStatus{State: StateRunning, Stage: ex.Name()})

		in := stage.Input{
			Text:          text,
			Slide:         slide,
			AvgConfidence: seg.AvgConfidence,
		}
		if ex.Name() == stage.Smooth {
			in.RecentNotes = recent
		}

		var out stage.Output
		start := time.Now()
		err := retry(ctx, o.retryCfg, o.logger, ex.Name().String(), func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
			defer cancel()
			var terr error
			out, terr = ex.Transform(attemptCtx, in)
			return terr
		})
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.RecordStage(ctx, ex.Name().String(), status, time.Since(start).Seconds())

		if err != nil {
			var perr *llm.ProviderError
			if errors.As(err, &perr) {
				o.metrics.RecordProviderError(ctx, perr.Provider, perr.Kind.String())
			}
			run.setStatus(RunStatus{State: StateFailed, Stage: ex.Name(), Reason: err.Error()})
			o.metrics.RecordRunCompleted(ctx, "degraded")
			o.logger.Warn("stage failed, emitting degraded note",
				"stage", ex.Name(),
				"slide", seg.SlideIndex,
				"seq", seg.Seq,
				"error", err,
			)
			o.emit(Note{
				SlideIndex:      seg.SlideIndex,
				Seq:             seg.Seq,
				Text:            text,
				Bullets:         bullets,
				DegradedAtStage: ex.Name(),
				StartedAt:       seg.StartedAt,
				EndedAt:         seg.EndedAt,
			})
			return
		}

		if out.Text != "" {
			text = out.Text
		}
		bullets = out.Bullets
		run.addOutput(out.Text)
	}

	run.setStatus(RunStatus{State: StateSucceeded})
	o.recent.Add(text)
	o.metrics.RecordRunCompleted(ctx, "succeeded")
	o.emit(Note{
		SlideIndex: seg.SlideIndex,
		Seq:        seg.Seq,
		Text:       text,
		Bullets:    bullets,
		StartedAt:  seg.StartedAt,
		EndedAt:    seg.EndedAt,
	})
}

// emit hands a terminal note to the consumer. The send blocks: the notes
// channel stays open until Process returns, so a consumer draining it is
// always present.
func (o *Orchestrator) emit(n Note) {
	o.notes <- n
}

// StageChain assembles the standard four-stage refinement chain backed by a
// single LLM provider.
func StageChain(provider llm.Provider, matcher *phonetic.Matcher, terms *termctx.Context, logger *slog.Logger) []stage.Executor {
	return []stage.Executor{
		stage.NewNormalizer(provider,
			stage.WithMatcher(matcher),
			stage.WithCorrections(terms.Corrections()),
			stage.WithNormalizeLogger(logger),
		),
		stage.NewSmoother(provider, logger),
		stage.NewPolisher(provider, logger),
		stage.NewSummarizer(provider),
	}
}
