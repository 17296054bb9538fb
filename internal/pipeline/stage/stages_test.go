package stage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hyunw00/lectern/internal/pipeline/stage"
	"github.com/hyunw00/lectern/internal/termctx"
	"github.com/hyunw00/lectern/pkg/provider/llm"
	llmmock "github.com/hyunw00/lectern/pkg/provider/llm/mock"
)

func TestSmoother_ReplacesText(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "smoothed text"},
	}
	s := stage.NewSmoother(p, nil)
	out, err := s.Transform(context.Background(), stage.Input{Text: "rough. text"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Text != "smoothed text" {
		t.Errorf("Text = %q, want %q", out.Text, "smoothed text")
	}
}

func TestSmoother_IncludesRecentNotes(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "ok"},
	}
	s := stage.NewSmoother(p, nil)
	_, err := s.Transform(context.Background(), stage.Input{
		Text:        "current slide text",
		RecentNotes: []string{"notes from slide 3", "notes from slide 4"},
	})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	msg := p.CompleteCalls[0].Req.Messages[0]
	if msg.Role != "user" {
		t.Errorf("message role = %q, want %q", msg.Role, "user")
	}
	user := msg.Content
	if !strings.Contains(user, "notes from slide 3") || !strings.Contains(user, "notes from slide 4") {
		t.Errorf("user message should carry the recent-notes window:\n%s", user)
	}
	if !strings.Contains(user, "current slide text") {
		t.Error("user message should carry the working text")
	}
}

func TestSmoother_LengthGuardKeepsInput(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: strings.Repeat("padding ", 80),
		},
	}
	s := stage.NewSmoother(p, nil)
	in := "short input text"
	out, err := s.Transform(context.Background(), stage.Input{Text: in})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Text != in {
		t.Errorf("Text = %q, want input kept", out.Text)
	}
}

func TestSmoother_EmptyResponseKeepsInput(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "  "},
	}
	s := stage.NewSmoother(p, nil)
	out, err := s.Transform(context.Background(), stage.Input{Text: "keep me"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Text != "keep me" {
		t.Errorf("Text = %q, want input kept on blank response", out.Text)
	}
}

func TestPolisher_ReplacesText(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "골밀도가 감소함"},
	}
	pl := stage.NewPolisher(p, nil)
	out, err := pl.Transform(context.Background(), stage.Input{
		Text:  "골밀도가 감소합니다",
		Slide: termctx.Slide{Index: 0, Title: "개요"},
	})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Text != "골밀도가 감소함" {
		t.Errorf("Text = %q, want polished output", out.Text)
	}

	user := p.CompleteCalls[0].Req.Messages[0].Content
	if !strings.Contains(user, "슬라이드 context") {
		t.Errorf("user message should carry the slide context block:\n%s", user)
	}
}

func TestPolisher_LengthGuardKeepsInput(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: strings.Repeat("장황한 내용 ", 100),
		},
	}
	pl := stage.NewPolisher(p, nil)
	in := "짧은 입력"
	out, err := pl.Transform(context.Background(), stage.Input{Text: in})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Text != in {
		t.Errorf("Text = %q, want input kept", out.Text)
	}
}

func TestSummarizer_ParsesBullets(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "- 골밀도가 감소함\n\n• T-score -2.5 이하에서 진단됨\nDEXA로 측정함\n",
		},
	}
	s := stage.NewSummarizer(p)
	out, err := s.Transform(context.Background(), stage.Input{Text: "polished notes"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	want := []string{"골밀도가 감소함", "T-score -2.5 이하에서 진단됨", "DEXA로 측정함"}
	if len(out.Bullets) != len(want) {
		t.Fatalf("Bullets = %v, want %v", out.Bullets, want)
	}
	for i, w := range want {
		if out.Bullets[i] != w {
			t.Errorf("Bullets[%d] = %q, want %q", i, out.Bullets[i], w)
		}
	}
	if out.Text != "polished notes" {
		t.Errorf("Text = %q, summarize must pass the polished text through", out.Text)
	}
}

func TestSummarizer_BlankInputSkipsProvider(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "unused"},
	}
	s := stage.NewSummarizer(p)
	out, err := s.Transform(context.Background(), stage.Input{Text: "   "})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(out.Bullets) != 0 {
		t.Errorf("Bullets = %v, want none for blank input", out.Bullets)
	}
	if p.CallCount() != 0 {
		t.Errorf("provider called %d times, want 0", p.CallCount())
	}
}

func TestStageNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name stage.Name
		want string
	}{
		{stage.Normalize, "normalize"},
		{stage.Smooth, "smooth"},
		{stage.Polish, "polish"},
		{stage.Summarize, "summarize"},
	}
	for _, tt := range tests {
		if got := tt.name.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
