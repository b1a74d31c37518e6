package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS closed_events (
	event_id      TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	participants  INTEGER NOT NULL,
	draw_attempts INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	closed_at     TIMESTAMPTZ NOT NULL
)`

// Postgres writes summaries to PostgreSQL through a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

var _ Archiver = (*Postgres)(nil)

// NewPostgres creates the archive table if needed. The archive owns pool
// and closes it on Close.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create closed_events table: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// RecordClosed inserts s, ignoring a summary already stored for the event.
func (p *Postgres) RecordClosed(ctx context.Context, s Summary) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO closed_events (event_id, name, participants, draw_attempts, created_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (event_id) DO NOTHING`,
		s.EventID, s.Name, s.Participants, s.DrawAttempts, s.CreatedAt, s.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert closed event: %w", err)
	}
	return nil
}

// Count returns the number of archived events.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM closed_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count closed events: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
