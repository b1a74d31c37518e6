// Package model defines the core domain types for the gift exchange: events,
// participants and the event aggregate that owns the draw.
package model

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/derange"
)

// ErrEventClosed is returned when a participant tries to join a closed event.
var ErrEventClosed = errors.New("event is closed")

// ErrAlreadyClosed is returned when closing an event a second time.
var ErrAlreadyClosed = errors.New("event is already closed")

// ErrInsufficientParticipants is returned when closing with fewer than two
// participants.
var ErrInsufficientParticipants = derange.ErrInsufficientParticipants

// MinParticipants is the smallest event that can be closed.
const MinParticipants = 2

// Status is the lifecycle state of an event. Open → Closed is the only
// transition.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Participant is one member of a gift exchange.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
	// AssignedTo is the id of the participant this one gives a gift to.
	// Empty until the event closes.
	AssignedTo string `json:"-"`
}

// Event is one gift-exchange round.
type Event struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	OrganizerToken string                 `json:"-"`
	InviteCode     string                 `json:"invite_code"`
	Status         Status                 `json:"status"`
	Participants   map[string]Participant `json:"-"`
	CreatedAt      time.Time              `json:"created_at"`
	ClosedAt       time.Time              `json:"closed_at,omitzero"`
}

// Deranger produces the assignment when an event closes.
type Deranger interface {
	Derange(ids []string) (derange.Result, error)
}

// NewEvent returns an open event with no participants.
func NewEvent(id, name, organizerToken, inviteCode string, now time.Time) *Event {
	return &Event{
		ID:             id,
		Name:           name,
		OrganizerToken: organizerToken,
		InviteCode:     inviteCode,
		Status:         StatusOpen,
		Participants:   make(map[string]Participant),
		CreatedAt:      now.UTC(),
	}
}

// IsClosed reports whether the draw has happened.
func (e *Event) IsClosed() bool {
	return e.Status == StatusClosed
}

// CanClose reports whether Close would succeed.
func (e *Event) CanClose() bool {
	return e.Status == StatusOpen && len(e.Participants) >= MinParticipants
}

// AddParticipant inserts a new participant. It fails with ErrEventClosed
// once the event is closed.
func (e *Event) AddParticipant(id, name string, now time.Time) error {
	if e.Status != StatusOpen {
		return ErrEventClosed
	}
	e.Participants[id] = Participant{
		ID:       id,
		Name:     name,
		JoinedAt: now.UTC(),
	}
	return nil
}

// Close runs the draw and freezes the event. It returns the number of
// permutations the deranger drew. This is the only place that sets
// AssignedTo or changes Status.
func (e *Event) Close(d Deranger, now time.Time) (int, error) {
	if e.Status == StatusClosed {
		return 0, ErrAlreadyClosed
	}
	if len(e.Participants) < MinParticipants {
		return 0, ErrInsufficientParticipants
	}

	res, err := d.Derange(slices.Collect(maps.Keys(e.Participants)))
	if err != nil {
		return 0, err
	}

	for giver, receiver := range res.Assignment {
		p := e.Participants[giver]
		p.AssignedTo = receiver
		e.Participants[giver] = p
	}
	e.Status = StatusClosed
	e.ClosedAt = now.UTC()
	return res.Attempts, nil
}

// AssignmentFor returns the participant that participantID gives a gift to.
// The second result is false when the participant is unknown or the event
// is still open.
func (e *Event) AssignmentFor(participantID string) (Participant, bool) {
	p, ok := e.Participants[participantID]
	if !ok || p.AssignedTo == "" {
		return Participant{}, false
	}
	recipient, ok := e.Participants[p.AssignedTo]
	return recipient, ok
}

// ParticipantList returns the participants ordered by join time, then id.
func (e *Event) ParticipantList() []Participant {
	list := slices.Collect(maps.Values(e.Participants))
	slices.SortFunc(list, func(a, b Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return list
}

// Clone returns a deep copy safe to hand out beyond the owner's lock.
func (e *Event) Clone() Event {
	c := *e
	c.Participants = maps.Clone(e.Participants)
	if c.Participants == nil {
		c.Participants = make(map[string]Participant)
	}
	return c
}
