package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLite writes summaries to a local SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Archiver = (*SQLite)(nil)

// NewSQLite opens (or creates) the archive at path. Use ":memory:" in tests.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS closed_events (
			event_id      TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			participants  INTEGER NOT NULL,
			draw_attempts INTEGER NOT NULL,
			created_at    TEXT NOT NULL,
			closed_at     TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordClosed inserts s, ignoring a summary already stored for the event.
func (s *SQLite) RecordClosed(ctx context.Context, sum Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO closed_events
			(event_id, name, participants, draw_attempts, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sum.EventID, sum.Name, sum.Participants, sum.DrawAttempts,
		sum.CreatedAt.UTC().Format(time.RFC3339Nano),
		sum.ClosedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert closed event: %w", err)
	}
	return nil
}

// Lookup returns the stored summary for eventID, or sql.ErrNoRows.
func (s *SQLite) Lookup(ctx context.Context, eventID string) (Summary, error) {
	var (
		sum                 Summary
		createdAt, closedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT event_id, name, participants, draw_attempts, created_at, closed_at
		FROM closed_events WHERE event_id = ?
	`, eventID).Scan(&sum.EventID, &sum.Name, &sum.Participants, &sum.DrawAttempts, &createdAt, &closedAt)
	if err != nil {
		return Summary{}, fmt.Errorf("lookup closed event: %w", err)
	}
	if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Summary{}, fmt.Errorf("parse created_at: %w", err)
	}
	if sum.ClosedAt, err = time.Parse(time.RFC3339Nano, closedAt); err != nil {
		return Summary{}, fmt.Errorf("parse closed_at: %w", err)
	}
	return sum, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
