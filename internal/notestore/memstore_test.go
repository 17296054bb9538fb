package notestore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyunw00/lectern/internal/notestore"
	"github.com/hyunw00/lectern/internal/pipeline"
	"github.com/hyunw00/lectern/internal/pipeline/stage"
)

func newSession(t *testing.T, s notestore.Store) string {
	t.Helper()
	sess := &notestore.Session{
		LectureTitle: "Bone Biology",
		StartedAt:    time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
	}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("CreateSession did not assign an ID")
	}
	return sess.ID
}

func TestMemStore_SaveAndListNotes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notestore.NewMemStore()
	id := newSession(t, store)

	// Insert out of order; the store must return slide order, then Seq.
	for _, n := range []notestore.StoredNote{
		{SessionID: id, SlideIndex: 2, Seq: 3, Text: "slide two, second visit"},
		{SessionID: id, SlideIndex: 0, Seq: 1, Text: "intro"},
		{SessionID: id, SlideIndex: 2, Seq: 2, Text: "slide two", Bullets: []string{"point"}},
	} {
		n := n
		if err := store.SaveNote(ctx, &n); err != nil {
			t.Fatalf("SaveNote: %v", err)
		}
		if n.ID == "" || n.CreatedAt.IsZero() {
			t.Fatalf("SaveNote did not assign ID/CreatedAt: %+v", n)
		}
	}

	notes, err := store.NotesBySession(ctx, id)
	if err != nil {
		t.Fatalf("NotesBySession: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(notes))
	}
	wantOrder := []string{"intro", "slide two", "slide two, second visit"}
	for i, want := range wantOrder {
		if notes[i].Text != want {
			t.Errorf("notes[%d].Text = %q, want %q", i, notes[i].Text, want)
		}
	}
}

func TestMemStore_UnknownSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notestore.NewMemStore()

	if _, err := store.NotesBySession(ctx, "missing"); !errors.Is(err, notestore.ErrNotFound) {
		t.Errorf("NotesBySession err = %v, want ErrNotFound", err)
	}
	err := store.SaveNote(ctx, &notestore.StoredNote{SessionID: "missing", Text: "orphan"})
	if !errors.Is(err, notestore.ErrNotFound) {
		t.Errorf("SaveNote err = %v, want ErrNotFound", err)
	}
	if err := store.FinishSession(ctx, "missing", time.Now()); !errors.Is(err, notestore.ErrNotFound) {
		t.Errorf("FinishSession err = %v, want ErrNotFound", err)
	}
}

func TestMemStore_DuplicateSessionID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notestore.NewMemStore()
	sess := &notestore.Session{ID: "fixed", LectureTitle: "A", StartedAt: time.Now()}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	dup := &notestore.Session{ID: "fixed", LectureTitle: "B", StartedAt: time.Now()}
	if err := store.CreateSession(ctx, dup); !errors.Is(err, notestore.ErrDuplicateID) {
		t.Errorf("CreateSession err = %v, want ErrDuplicateID", err)
	}
}

func TestMemStore_FinishSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notestore.NewMemStore()
	id := newSession(t, store)

	ended := time.Date(2026, 3, 9, 11, 30, 0, 0, time.UTC)
	if err := store.FinishSession(ctx, id, ended); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || !sessions[0].EndedAt.Equal(ended) {
		t.Errorf("sessions = %+v, want one session ended at %v", sessions, ended)
	}
}

func TestFromPipeline(t *testing.T) {
	t.Parallel()

	n := pipeline.Note{
		SlideIndex:      3,
		Seq:             7,
		Text:            "polished",
		Bullets:         []string{"one"},
		DegradedAtStage: stage.Polish,
	}
	sn := notestore.FromPipeline("sess-1", n)
	if sn.SessionID != "sess-1" || sn.SlideIndex != 3 || sn.Seq != 7 {
		t.Errorf("FromPipeline = %+v, identity fields wrong", sn)
	}
	if !sn.Degraded() || sn.DegradedStage != "polish" {
		t.Errorf("DegradedStage = %q, want polish", sn.DegradedStage)
	}

	clean := notestore.FromPipeline("sess-1", pipeline.Note{Text: "ok"})
	if clean.Degraded() {
		t.Errorf("clean note reported degraded: %+v", clean)
	}
}
