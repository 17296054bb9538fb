package notestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the session and note tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS lecture_sessions (
    id            TEXT PRIMARY KEY,
    lecture_title TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS lecture_notes (
    id             TEXT PRIMARY KEY,
    session_id     TEXT NOT NULL REFERENCES lecture_sessions(id) ON DELETE CASCADE,
    slide_index    INT NOT NULL,
    seq            INT NOT NULL,
    text           TEXT NOT NULL,
    bullets        JSONB NOT NULL DEFAULT '[]',
    degraded_stage TEXT NOT NULL DEFAULT '',
    started_at     TIMESTAMPTZ NOT NULL,
    ended_at       TIMESTAMPTZ NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_lecture_notes_session ON lecture_notes(session_id, slide_index, seq);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Summary
// bullets are serialised as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// tables and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("notestore: migrate: %w", err)
	}
	return nil
}

// CreateSession implements [Store.CreateSession].
func (s *PostgresStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = newID()
	}

	const query = `
		INSERT INTO lecture_sessions (id, lecture_title, started_at)
		VALUES ($1, $2, $3)`

	if _, err := s.db.Exec(ctx, query, sess.ID, sess.LectureTitle, sess.StartedAt); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: session %q", ErrDuplicateID, sess.ID)
		}
		return fmt.Errorf("notestore: create session: %w", err)
	}
	return nil
}

// FinishSession implements [Store.FinishSession].
func (s *PostgresStore) FinishSession(ctx context.Context, id string, endedAt time.Time) error {
	const query = `UPDATE lecture_sessions SET ended_at = $2 WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id, endedAt)
	if err != nil {
		return fmt.Errorf("notestore: finish session %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %q", ErrNotFound, id)
	}
	return nil
}

// SaveNote implements [Store.SaveNote].
func (s *PostgresStore) SaveNote(ctx context.Context, n *StoredNote) error {
	if n.ID == "" {
		n.ID = newID()
	}
	bulletsJSON, err := json.Marshal(emptySlice(n.Bullets))
	if err != nil {
		return fmt.Errorf("notestore: marshal bullets: %w", err)
	}

	const query = `
		INSERT INTO lecture_notes (
			id, session_id, slide_index, seq, text, bullets,
			degraded_stage, started_at, ended_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`

	err = s.db.QueryRow(ctx, query,
		n.ID, n.SessionID, n.SlideIndex, n.Seq, n.Text, bulletsJSON,
		n.DegradedStage, n.StartedAt, n.EndedAt,
	).Scan(&n.CreatedAt)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: session %q", ErrNotFound, n.SessionID)
		}
		return fmt.Errorf("notestore: save note: %w", err)
	}
	return nil
}

// NotesBySession implements [Store.NotesBySession].
func (s *PostgresStore) NotesBySession(ctx context.Context, sessionID string) ([]StoredNote, error) {
	const query = `
		SELECT id, session_id, slide_index, seq, text, bullets,
		       degraded_stage, started_at, ended_at, created_at
		FROM lecture_notes
		WHERE session_id = $1
		ORDER BY slide_index, seq`

	rows, err := s.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("notestore: notes for session %q: %w", sessionID, err)
	}
	defer rows.Close()

	var notes []StoredNote
	for rows.Next() {
		var n StoredNote
		var bulletsJSON []byte
		if err := rows.Scan(
			&n.ID, &n.SessionID, &n.SlideIndex, &n.Seq, &n.Text, &bulletsJSON,
			&n.DegradedStage, &n.StartedAt, &n.EndedAt, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("notestore: scan note: %w", err)
		}
		if err := json.Unmarshal(bulletsJSON, &n.Bullets); err != nil {
			return nil, fmt.Errorf("notestore: unmarshal bullets: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notestore: notes for session %q: %w", sessionID, err)
	}

	if notes == nil {
		// Distinguish an unknown session from one with no notes yet.
		var exists bool
		const check = `SELECT EXISTS (SELECT 1 FROM lecture_sessions WHERE id = $1)`
		if err := s.db.QueryRow(ctx, check, sessionID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("notestore: check session %q: %w", sessionID, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: session %q", ErrNotFound, sessionID)
		}
	}
	return notes, nil
}

// Sessions implements [Store.Sessions].
func (s *PostgresStore) Sessions(ctx context.Context) ([]Session, error) {
	const query = `
		SELECT id, lecture_title, started_at, ended_at
		FROM lecture_sessions
		ORDER BY started_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("notestore: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var endedAt *time.Time
		if err := rows.Scan(&sess.ID, &sess.LectureTitle, &sess.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("notestore: scan session: %w", err)
		}
		if endedAt != nil {
			sess.EndedAt = *endedAt
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notestore: list sessions: %w", err)
	}
	return sessions, nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isForeignKeyError checks whether a PostgreSQL error is a foreign-key
// violation (SQLSTATE 23503).
func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
