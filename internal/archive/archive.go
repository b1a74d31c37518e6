// Package archive records summaries of closed events. The archive is
// write-only: the service never reads it back, so event state itself stays
// in memory. Summaries carry no organizer token and no assignment.
package archive

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/model"
)

// Summary is the record written when an event closes.
type Summary struct {
	EventID      string
	Name         string
	Participants int
	DrawAttempts int
	CreatedAt    time.Time
	ClosedAt     time.Time
}

// SummaryOf builds the archive record for a closed event.
func SummaryOf(e model.Event, attempts int) Summary {
	return Summary{
		EventID:      e.ID,
		Name:         e.Name,
		Participants: len(e.Participants),
		DrawAttempts: attempts,
		CreatedAt:    e.CreatedAt,
		ClosedAt:     e.ClosedAt,
	}
}

// Archiver stores closed-event summaries. Recording the same event twice is
// not an error and keeps the first record.
type Archiver interface {
	RecordClosed(ctx context.Context, s Summary) error
	Close() error
}

// Noop discards every summary.
type Noop struct{}

var _ Archiver = Noop{}

// RecordClosed does nothing.
func (Noop) RecordClosed(context.Context, Summary) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
