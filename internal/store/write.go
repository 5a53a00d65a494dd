package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/ttp/internal/ttp"
)

// Session describes one archived export.
type Session struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Clock     string `json:"clock"`
	Contexts  int    `json:"contexts"`
	Capacity  int    `json:"capacity"`
	CreatedAt int64  `json:"created_ns"`
	Events    int64  `json:"events"`
}

// SessionWriter streams exported lines into one archive session inside a
// transaction. It implements io.Writer, so a ttp export can be drained
// straight into it:
//
//	w, _ := st.BeginSession(ctx, meta)
//	if _, err := tracer.WriteTo(w); err != nil { w.Rollback() }
//	w.Commit()
//
// Writes may split lines arbitrarily; incomplete trailing data is held
// until the next Write or rejected at Commit.
type SessionWriter struct {
	ctx     context.Context
	tx      *sql.Tx
	insert  *sql.Stmt
	session Session
	pending []byte
	done    bool
}

// BeginSession opens a transaction and inserts the session row. ID and
// CreatedAt are filled in when zero.
func (s *Store) BeginSession(ctx context.Context, meta Session) (*SessionWriter, error) {
	if meta.ID == "" {
		meta.ID = s.ids.Generate()
	}
	if meta.CreatedAt == 0 {
		meta.CreatedAt = time.Now().UnixNano()
	}
	meta.Events = 0

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, source, clock, contexts, capacity, created_ns, event_count)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, meta.ID, meta.Source, meta.Clock, meta.Contexts, meta.Capacity, meta.CreatedAt)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("begin session: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO events (session_id, seq, context, event_id, timestamp_ns)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("begin session: prepare: %w", err)
	}

	return &SessionWriter{ctx: ctx, tx: tx, insert: insert, session: meta}, nil
}

// ID returns the session id.
func (w *SessionWriter) ID() string {
	return w.session.ID
}

// Write parses complete lines from p and inserts them.
func (w *SessionWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, errors.New("session writer already finished")
	}
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		line := string(w.pending[:i])
		w.pending = w.pending[i+1:]
		rec, err := ttp.ParseLine(line)
		if err != nil {
			return 0, fmt.Errorf("archive: %w", err)
		}
		if err := w.Add(rec); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Add inserts one record.
func (w *SessionWriter) Add(r ttp.Record) error {
	if w.done {
		return errors.New("session writer already finished")
	}
	_, err := w.insert.ExecContext(w.ctx,
		w.session.ID, w.session.Events, r.Context, r.ID, int64(r.Timestamp))
	if err != nil {
		return fmt.Errorf("archive event %d: %w", w.session.Events, err)
	}
	w.session.Events++
	return nil
}

// Commit stores the event count and commits the session.
func (w *SessionWriter) Commit() (Session, error) {
	if w.done {
		return Session{}, errors.New("session writer already finished")
	}
	if len(bytes.TrimSpace(w.pending)) > 0 {
		w.Rollback()
		return Session{}, fmt.Errorf("archive: incomplete trailing line %q", w.pending)
	}
	w.done = true
	defer w.insert.Close()

	_, err := w.tx.ExecContext(w.ctx,
		`UPDATE sessions SET event_count = ? WHERE id = ?`, w.session.Events, w.session.ID)
	if err != nil {
		w.tx.Rollback()
		return Session{}, fmt.Errorf("commit session: %w", err)
	}
	if err := w.tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit session: %w", err)
	}
	return w.session, nil
}

// Rollback discards the session. Calling it after Commit is a no-op.
func (w *SessionWriter) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	w.insert.Close()
	return w.tx.Rollback()
}

// SaveSession archives records as one session.
func (s *Store) SaveSession(ctx context.Context, meta Session, records []ttp.Record) (Session, error) {
	w, err := s.BeginSession(ctx, meta)
	if err != nil {
		return Session{}, err
	}
	for _, r := range records {
		if err := w.Add(r); err != nil {
			w.Rollback()
			return Session{}, err
		}
	}
	return w.Commit()
}

// DeleteSession removes a session and its events.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}
