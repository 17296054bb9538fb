package notestore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for single-session use and testing.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	notes    map[string][]StoredNote

	// now is replaced in tests.
	now func() time.Time
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]Session),
		notes:    make(map[string][]StoredNote),
		now:      time.Now,
	}
}

// CreateSession implements [Store.CreateSession].
func (s *MemStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = newID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return ErrDuplicateID
	}
	s.sessions[sess.ID] = *sess
	return nil
}

// FinishSession implements [Store.FinishSession].
func (s *MemStore) FinishSession(ctx context.Context, id string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.EndedAt = endedAt
	s.sessions[id] = sess
	return nil
}

// SaveNote implements [Store.SaveNote].
func (s *MemStore) SaveNote(ctx context.Context, n *StoredNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[n.SessionID]; !ok {
		return ErrNotFound
	}
	if n.ID == "" {
		n.ID = newID()
	}
	n.CreatedAt = s.now()
	s.notes[n.SessionID] = append(s.notes[n.SessionID], *n)
	return nil
}

// NotesBySession implements [Store.NotesBySession].
func (s *MemStore) NotesBySession(ctx context.Context, sessionID string) ([]StoredNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}

	notes := make([]StoredNote, len(s.notes[sessionID]))
	copy(notes, s.notes[sessionID])
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].SlideIndex != notes[j].SlideIndex {
			return notes[i].SlideIndex < notes[j].SlideIndex
		}
		return notes[i].Seq < notes[j].Seq
	})
	return notes, nil
}

// Sessions implements [Store.Sessions].
func (s *MemStore) Sessions(ctx context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}
