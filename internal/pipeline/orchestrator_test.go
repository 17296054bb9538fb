package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyunw00/lectern/internal/pipeline"
	"github.com/hyunw00/lectern/internal/pipeline/stage"
	stagemock "github.com/hyunw00/lectern/internal/pipeline/stage/mock"
	"github.com/hyunw00/lectern/internal/segment"
	"github.com/hyunw00/lectern/internal/termctx"
	"github.com/hyunw00/lectern/pkg/provider/llm"
)

func testTerms(t *testing.T) *termctx.Context {
	t.Helper()
	tc, err := termctx.New("Bone Biology", nil, []termctx.Slide{
		{Index: 0, Title: "Intro"},
		{Index: 1, Title: "Osteoporosis", PhoneticMap: map[string]string{"오스테오포로시스": "osteoporosis"}},
		{Index: 2, Title: "Treatment"},
	})
	if err != nil {
		t.Fatalf("termctx.New: %v", err)
	}
	return tc
}

// tagChain builds a four-stage chain where each stage appends its name to
// the text, making the execution order visible in the final note.
func tagChain() []stage.Executor {
	tag := func(name stage.Name) *stagemock.Executor {
		return &stagemock.Executor{
			StageName: name,
			TransformFunc: func(ctx context.Context, in stage.Input) (stage.Output, error) {
				return stage.Output{Text: in.Text + "|" + name.String()}, nil
			},
		}
	}
	return []stage.Executor{
		tag(stage.Normalize),
		tag(stage.Smooth),
		tag(stage.Polish),
		&stagemock.Executor{
			StageName:       stage.Summarize,
			TransformOutput: stage.Output{Text: "summarised", Bullets: []string{"first point", "second point"}},
		},
	}
}

func seg(slide, seq int, text string) segment.FinalizedSegment {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	return segment.FinalizedSegment{
		SlideIndex: slide,
		Seq:        seq,
		Text:       text,
		StartedAt:  base,
		EndedAt:    base.Add(5 * time.Second),
	}
}

// runPipeline feeds the segments through a fresh orchestrator and returns
// the collected notes plus the orchestrator for run inspection.
func runPipeline(t *testing.T, ctx context.Context, cfg pipeline.Config, segs ...segment.FinalizedSegment) ([]pipeline.Note, *pipeline.Orchestrator) {
	t.Helper()

	if cfg.Terms == nil {
		cfg.Terms = testTerms(t)
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = time.Millisecond
	}
	o, err := pipeline.New(cfg)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	in := make(chan segment.FinalizedSegment, len(segs))
	for _, s := range segs {
		in <- s
	}
	close(in)

	collector := pipeline.NewCollector()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		collector.Consume(o.Notes())
	}()
	o.Process(ctx, in)
	wg.Wait()

	return collector.Notes(), o
}

func TestOrchestrator_RunsStagesInOrder(t *testing.T) {
	t.Parallel()

	notes, o := runPipeline(t, context.Background(),
		pipeline.Config{Stages: tagChain()},
		seg(1, 1, "raw"),
	)
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
	n := notes[0]
	if n.Text != "summarised" {
		t.Errorf("Text = %q, want summarize stage output", n.Text)
	}
	if len(n.Bullets) != 2 {
		t.Errorf("Bullets = %v, want 2 entries", n.Bullets)
	}
	if n.Degraded() {
		t.Errorf("note unexpectedly degraded at %v", n.DegradedAtStage)
	}

	runs := o.Runs()
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if st := runs[0].Status(); st.State != pipeline.StateSucceeded {
		t.Errorf("run status = %v, want succeeded", st)
	}
	outputs := runs[0].StageOutputs()
	if len(outputs) != 4 {
		t.Fatalf("stage outputs = %v, want 4", outputs)
	}
	if outputs[2] != "raw|normalize|smooth|polish" {
		t.Errorf("polish output = %q, stages ran out of order", outputs[2])
	}
}

func TestOrchestrator_DegradedNoteOnPermanentFailure(t *testing.T) {
	t.Parallel()

	chain := tagChain()
	chain[2] = &stagemock.Executor{
		StageName:    stage.Polish,
		TransformErr: &llm.ProviderError{Provider: "openai", Kind: llm.KindPermanent, Err: errors.New("content policy")},
	}
	summarize := chain[3].(*stagemock.Executor)

	notes, o := runPipeline(t, context.Background(),
		pipeline.Config{Stages: chain},
		seg(1, 1, "raw"),
	)
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1 (degraded runs still produce a note)", len(notes))
	}
	n := notes[0]
	if n.Text != "raw|normalize|smooth" {
		t.Errorf("Text = %q, want the smooth stage output", n.Text)
	}
	if n.DegradedAtStage != stage.Polish {
		t.Errorf("DegradedAtStage = %v, want polish", n.DegradedAtStage)
	}
	if summarize.CallCount() != 0 {
		t.Errorf("summarize ran %d times after polish failed, want 0", summarize.CallCount())
	}

	st := o.Runs()[0].Status()
	if st.State != pipeline.StateFailed || st.Stage != stage.Polish {
		t.Errorf("run status = %v, want failed(polish)", st)
	}
}

func TestOrchestrator_TransientFailureRetried(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	chain := tagChain()
	chain[2] = &stagemock.Executor{
		StageName: stage.Polish,
		TransformFunc: func(ctx context.Context, in stage.Input) (stage.Output, error) {
			if attempts.Add(1) < 3 {
				return stage.Output{}, &llm.ProviderError{Provider: "openai", Kind: llm.KindTransient, Err: errors.New("rate limited")}
			}
			return stage.Output{Text: in.Text + "|polish"}, nil
		},
	}

	notes, _ := runPipeline(t, context.Background(),
		pipeline.Config{
			Stages: chain,
			Retry:  pipeline.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond},
		},
		seg(1, 1, "raw"),
	)
	if len(notes) != 1 || notes[0].Degraded() {
		t.Fatalf("notes = %+v, want one fully refined note", notes)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("polish attempts = %d, want 3", got)
	}
}

func TestOrchestrator_ConcurrencyBounded(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	slow := &stagemock.Executor{
		StageName: stage.Normalize,
		TransformFunc: func(ctx context.Context, in stage.Input) (stage.Output, error) {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return stage.Output{Text: in.Text}, nil
		},
	}

	segs := make([]segment.FinalizedSegment, 6)
	for i := range segs {
		segs[i] = seg(i%3, i+1, "text")
	}
	notes, _ := runPipeline(t, context.Background(),
		pipeline.Config{Stages: []stage.Executor{slow}, MaxInFlight: 2},
		segs...,
	)
	if len(notes) != 6 {
		t.Fatalf("got %d notes, want 6", len(notes))
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak in-flight runs = %d, want at most 2", p)
	}
}

func TestOrchestrator_ManualFlushNotesMergeInOrder(t *testing.T) {
	t.Parallel()

	notes, _ := runPipeline(t, context.Background(),
		pipeline.Config{Stages: tagChain(), MaxInFlight: 1},
		seg(2, 1, "before flush"),
		seg(2, 2, "after flush"),
		seg(0, 3, "closing remarks"),
	)
	if len(notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(notes))
	}
	// Collector orders by slide, then by emission order within a slide.
	if notes[0].SlideIndex != 0 {
		t.Errorf("notes[0].SlideIndex = %d, want 0", notes[0].SlideIndex)
	}
	if notes[1].SlideIndex != 2 || notes[2].SlideIndex != 2 {
		t.Fatalf("slide 2 notes out of place: %+v", notes)
	}
	if notes[1].Seq > notes[2].Seq {
		t.Errorf("slide 2 notes not in emission order: seq %d before %d", notes[1].Seq, notes[2].Seq)
	}
}

func TestOrchestrator_CancelledSessionDiscardsPendingRuns(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	notes, o := runPipeline(t, ctx,
		pipeline.Config{Stages: tagChain()},
		seg(0, 1, "never refined"),
		seg(1, 2, "never refined either"),
	)
	if len(notes) != 0 {
		t.Fatalf("got %d notes from a stopped session, want 0", len(notes))
	}
	for i, r := range o.Runs() {
		if st := r.Status(); st.State != pipeline.StateDiscarded {
			t.Errorf("run %d status = %v, want discarded", i, st)
		}
	}
}

func TestOrchestrator_SmoothSeesPrecedingPolishedNotes(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var windows [][]string
	chain := tagChain()
	chain[1] = &stagemock.Executor{
		StageName: stage.Smooth,
		TransformFunc: func(ctx context.Context, in stage.Input) (stage.Output, error) {
			mu.Lock()
			windows = append(windows, in.RecentNotes)
			mu.Unlock()
			return stage.Output{Text: in.Text}, nil
		},
	}
	chain[3] = &stagemock.Executor{
		StageName: stage.Summarize,
		TransformFunc: func(ctx context.Context, in stage.Input) (stage.Output, error) {
			return stage.Output{Text: in.Text, Bullets: []string{in.Text}}, nil
		},
	}

	_, _ = runPipeline(t, context.Background(),
		pipeline.Config{Stages: chain, MaxInFlight: 1},
		seg(0, 1, "first"),
		seg(1, 2, "second"),
	)

	mu.Lock()
	defer mu.Unlock()
	if len(windows) != 2 {
		t.Fatalf("smooth ran %d times, want 2", len(windows))
	}
	if len(windows[0]) != 0 {
		t.Errorf("first run saw recent notes %v, want none", windows[0])
	}
	if len(windows[1]) != 1 || !strings.HasPrefix(windows[1][0], "first") {
		t.Errorf("second run's window = %v, want the first run's polished text", windows[1])
	}
}

func TestRecentNotes_WindowEvictsOldest(t *testing.T) {
	t.Parallel()

	w := pipeline.NewRecentNotes(2)
	w.Add("one")
	w.Add("  ")
	w.Add("two")
	w.Add("three")

	got := w.Snapshot()
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Errorf("Snapshot = %v, want [two three]", got)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := pipeline.New(pipeline.Config{Terms: testTerms(t)}); err == nil {
		t.Error("New accepted a config with no stages")
	}
	if _, err := pipeline.New(pipeline.Config{Stages: tagChain()}); err == nil {
		t.Error("New accepted a config with no term context")
	}
}
