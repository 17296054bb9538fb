// Package notestore persists finished lecture sessions and their notes, so
// notes survive the process and can be re-exported later.
package notestore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hyunw00/lectern/internal/pipeline"
)

// newID mints identifiers for sessions and notes saved without one.
func newID() string {
	return uuid.NewString()
}

// Sentinel errors returned by [Store] implementations.
var (
	// ErrNotFound is returned when the requested session does not exist.
	ErrNotFound = errors.New("notestore: not found")

	// ErrDuplicateID is returned when creating a session whose ID is taken.
	ErrDuplicateID = errors.New("notestore: duplicate id")
)

// Session is one recorded lecture session.
type Session struct {
	// ID uniquely identifies the session. Assigned on create if empty.
	ID string

	// LectureTitle is the title from the term context.
	LectureTitle string

	// StartedAt is when capture began.
	StartedAt time.Time

	// EndedAt is when the session finished. Zero while the session is live.
	EndedAt time.Time
}

// StoredNote is one persisted note, the terminal output of a pipeline run.
type StoredNote struct {
	// ID uniquely identifies the note. Assigned on save if empty.
	ID string

	// SessionID links the note to its [Session].
	SessionID string

	// SlideIndex and Seq mirror the pipeline note; Seq preserves emission
	// order within a slide.
	SlideIndex int
	Seq        int

	// Text is the note body, Bullets the summary.
	Text    string
	Bullets []string

	// DegradedStage names the failed refinement stage, empty for fully
	// refined notes.
	DegradedStage string

	// StartedAt and EndedAt bound the speech covered by the note.
	StartedAt time.Time
	EndedAt   time.Time

	// CreatedAt is assigned by the store.
	CreatedAt time.Time
}

// Degraded reports whether the note carries less than fully refined output.
func (n StoredNote) Degraded() bool {
	return n.DegradedStage != ""
}

// FromPipeline converts a terminal pipeline note into a [StoredNote] for the
// given session.
func FromPipeline(sessionID string, n pipeline.Note) StoredNote {
	sn := StoredNote{
		SessionID:  sessionID,
		SlideIndex: n.SlideIndex,
		Seq:        n.Seq,
		Text:       n.Text,
		Bullets:    n.Bullets,
		StartedAt:  n.StartedAt,
		EndedAt:    n.EndedAt,
	}
	if n.Degraded() {
		sn.DegradedStage = n.DegradedAtStage.String()
	}
	return sn
}

// Store persists sessions and notes.
type Store interface {
	// CreateSession records a new session. Assigns Session.ID if empty.
	CreateSession(ctx context.Context, s *Session) error

	// FinishSession marks the session as ended.
	FinishSession(ctx context.Context, id string, endedAt time.Time) error

	// SaveNote persists one note. Assigns StoredNote.ID and CreatedAt.
	SaveNote(ctx context.Context, n *StoredNote) error

	// NotesBySession returns the session's notes ordered by slide index,
	// then by Seq.
	NotesBySession(ctx context.Context, sessionID string) ([]StoredNote, error)

	// Sessions returns all recorded sessions, newest first.
	Sessions(ctx context.Context) ([]Session, error)
}
