package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyunw00/lectern/internal/segment"
	"github.com/hyunw00/lectern/pkg/provider/stt"
)

// defaultJournalTTL keeps a crashed session's journal around long enough to
// recover the raw transcript, without hoarding Redis memory forever.
const defaultJournalTTL = 72 * time.Hour

// JournalEntry is one record in the session journal: an accepted fragment, a
// slide transition, or a finalized segment.
type JournalEntry struct {
	Kind       string    `json:"kind"` // "fragment", "transition", "segment"
	At         time.Time `json:"at"`
	Slide      int       `json:"slide,omitempty"`
	Seq        int       `json:"seq,omitempty"`
	Text       string    `json:"text,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Journal is a crash-safe, append-only record of a session's raw input and
// finalized segments, kept in a Redis list. If the process dies mid-lecture,
// the journal still holds everything the student said.
//
// Record methods are best-effort: journal failures are logged and swallowed
// so they can never stall the live ingestion path.
type Journal struct {
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewJournal creates a journal for the given session ID. A nil logger falls
// back to [slog.Default].
func NewJournal(rdb *redis.Client, sessionID string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		rdb:    rdb,
		key:    "lectern:journal:" + sessionID,
		ttl:    defaultJournalTTL,
		logger: logger,
	}
}

// RecordFragment appends an accepted final transcript fragment.
func (j *Journal) RecordFragment(ctx context.Context, f stt.Fragment) {
	j.append(ctx, JournalEntry{
		Kind:       "fragment",
		At:         f.SpokenAt,
		Text:       f.Text,
		Confidence: f.Confidence,
	})
}

// RecordTransition appends a slide transition.
func (j *Journal) RecordTransition(ctx context.Context, t segment.Transition) {
	j.append(ctx, JournalEntry{
		Kind:  "transition",
		At:    t.OccurredAt,
		Slide: t.To,
		Text:  t.Kind.String(),
	})
}

// RecordSegment appends a finalized segment.
func (j *Journal) RecordSegment(ctx context.Context, s segment.FinalizedSegment) {
	j.append(ctx, JournalEntry{
		Kind:       "segment",
		At:         s.StartedAt,
		Slide:      s.SlideIndex,
		Seq:        s.Seq,
		Text:       s.Text,
		Confidence: s.AvgConfidence,
	})
}

func (j *Journal) append(ctx context.Context, e JournalEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		j.logger.Warn("journal marshal failed", "kind", e.Kind, "error", err)
		return
	}

	pipe := j.rdb.Pipeline()
	pipe.RPush(ctx, j.key, data)
	pipe.Expire(ctx, j.key, j.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		j.logger.Warn("journal append failed", "kind", e.Kind, "error", err)
	}
}

// Entries reads back the full journal, oldest first. Used for post-crash
// recovery and in tests.
func (j *Journal) Entries(ctx context.Context) ([]JournalEntry, error) {
	raw, err := j.rdb.LRange(ctx, j.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("session: read journal: %w", err)
	}

	entries := make([]JournalEntry, 0, len(raw))
	for _, item := range raw {
		var e JournalEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("session: decode journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Clear removes the journal, typically after the session's notes have been
// durably persisted.
func (j *Journal) Clear(ctx context.Context) error {
	if err := j.rdb.Del(ctx, j.key).Err(); err != nil {
		return fmt.Errorf("session: clear journal: %w", err)
	}
	return nil
}
