package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ttp/internal/ttp"
)

// ErrSessionNotFound is returned when a session id does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ListSessions returns every archived session, oldest first.
//
// Returns an empty slice (not nil) if the archive is empty.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, clock, contexts, capacity, created_ns, event_count
		FROM sessions
		ORDER BY created_ns ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session's metadata.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, clock, contexts, capacity, created_ns, event_count
		FROM sessions
		WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("get session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ReadEvents returns a session's records in export order. A negative
// contextIndex returns every context.
func (s *Store) ReadEvents(ctx context.Context, id string, contextIndex int) ([]ttp.Record, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT context, event_id, timestamp_ns
		FROM events
		WHERE session_id = ? AND (? < 0 OR context = ?)
		ORDER BY seq ASC
	`, id, contextIndex, contextIndex)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []ttp.Record{}
	for rows.Next() {
		var (
			rec ttp.Record
			ts  int64
		)
		if err := rows.Scan(&rec.Context, &rec.ID, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Timestamp = uint64(ts)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.Source, &sess.Clock, &sess.Contexts,
		&sess.Capacity, &sess.CreatedAt, &sess.Events)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}
