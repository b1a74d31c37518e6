// Package repository implements the process-wide event store.
//
// Events live in memory only. The store keeps two indexes, events by id and
// event ids by invite code, each behind its own RWMutex. Every event also
// carries its own lock, so joins and closes on one event are serialised
// while different events proceed in parallel.
//
// Lock order is always codes → events → entry. No lock is held across I/O.
package repository

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/derange"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/idgen"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/model"
)

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidToken is returned when the organizer token does not match.
var ErrInvalidToken = errors.New("invalid organizer token")

// ErrNoAssignment is returned when a participant has no recipient, either
// because the participant is unknown or the event is still open.
var ErrNoAssignment = errors.New("no assignment for participant")

// ErrCodeSpaceExhausted is returned when no free invite code was found.
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique invite code")

// maxCodeAttempts bounds invite-code regeneration on collision.
const maxCodeAttempts = 64

// eventEntry pairs an event with the lock that guards it.
type eventEntry struct {
	mu    sync.RWMutex
	event *model.Event
}

// CloseResult is returned by a successful Close.
type CloseResult struct {
	Event model.Event
	// Attempts is the number of permutations drawn for the assignment.
	Attempts int
}

// Option configures an EventStore.
type Option func(*EventStore)

// WithDeranger sets the engine used to draw assignments.
func WithDeranger(d model.Deranger) Option {
	return func(s *EventStore) { s.deranger = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *EventStore) { s.now = now }
}

// WithCodeGenerator replaces the invite-code generator.
func WithCodeGenerator(gen func() string) Option {
	return func(s *EventStore) { s.newCode = gen }
}

// EventStore is the concurrent registry of all events. Construct one per
// process with NewEventStore and share the pointer.
type EventStore struct {
	eventsMu sync.RWMutex
	events   map[string]*eventEntry // event id -> entry

	codesMu sync.RWMutex
	codes   map[string]string // invite code -> event id

	deranger model.Deranger
	now      func() time.Time
	newID    func() string
	newToken func() string
	newCode  func() string
}

// NewEventStore constructs an empty EventStore.
func NewEventStore(opts ...Option) *EventStore {
	s := &EventStore{
		events:   make(map[string]*eventEntry),
		codes:    make(map[string]string),
		deranger: derange.New(),
		now:      time.Now,
		newID:    idgen.NewID,
		newToken: idgen.NewOrganizerToken,
		newCode:  idgen.NewInviteCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new open event and returns a snapshot of it.
func (s *EventStore) Create(name string) (model.Event, error) {
	id := s.newID()
	token := s.newToken()

	s.codesMu.Lock()
	defer s.codesMu.Unlock()

	code, err := s.allocateCode()
	if err != nil {
		return model.Event{}, err
	}

	event := model.NewEvent(id, name, token, code, s.now())
	snapshot := event.Clone()

	s.eventsMu.Lock()
	s.events[id] = &eventEntry{event: event}
	s.eventsMu.Unlock()

	s.codes[code] = id
	return snapshot, nil
}

// allocateCode draws invite codes until one is free. Callers hold codesMu.
func (s *EventStore) allocateCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.newCode()
		if _, taken := s.codes[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Get returns a snapshot of the event with the given id.
func (s *EventStore) Get(id string) (model.Event, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return model.Event{}, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.event.Clone(), nil
}

// GetByInviteCode returns a snapshot of the event registered under code.
// Closed events keep their code.
func (s *EventStore) GetByInviteCode(code string) (model.Event, error) {
	s.codesMu.RLock()
	id, ok := s.codes[code]
	s.codesMu.RUnlock()
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return s.Get(id)
}

// AddParticipant joins a new participant to an open event and returns the
// participant id. It fails with ErrNotFound or model.ErrEventClosed.
func (s *EventStore) AddParticipant(eventID, name string) (string, error) {
	entry, err := s.lookup(eventID)
	if err != nil {
		return "", err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	participantID := s.newID()
	if err := entry.event.AddParticipant(participantID, name, s.now()); err != nil {
		return "", err
	}
	return participantID, nil
}

// Close validates the organizer token and runs the draw.
func (s *EventStore) Close(eventID, organizerToken string) (CloseResult, error) {
	entry, err := s.lookup(eventID)
	if err != nil {
		return CloseResult{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !tokenMatches(entry.event.OrganizerToken, organizerToken) {
		return CloseResult{}, ErrInvalidToken
	}

	attempts, err := entry.event.Close(s.deranger, s.now())
	if err != nil {
		return CloseResult{}, err
	}
	return CloseResult{Event: entry.event.Clone(), Attempts: attempts}, nil
}

// VerifyOrganizer returns a snapshot of the event if organizerToken is the
// event's token.
func (s *EventStore) VerifyOrganizer(eventID, organizerToken string) (model.Event, error) {
	entry, err := s.lookup(eventID)
	if err != nil {
		return model.Event{}, err
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	if !tokenMatches(entry.event.OrganizerToken, organizerToken) {
		return model.Event{}, ErrInvalidToken
	}
	return entry.event.Clone(), nil
}

// AssignmentFor returns a snapshot of the participant that participantID
// gives a gift to.
func (s *EventStore) AssignmentFor(eventID, participantID string) (model.Participant, error) {
	entry, err := s.lookup(eventID)
	if err != nil {
		return model.Participant{}, err
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	recipient, ok := entry.event.AssignmentFor(participantID)
	if !ok {
		return model.Participant{}, ErrNoAssignment
	}
	return recipient, nil
}

// Len returns the number of registered events.
func (s *EventStore) Len() int {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return len(s.events)
}

func (s *EventStore) lookup(id string) (*eventEntry, error) {
	s.eventsMu.RLock()
	entry, ok := s.events[id]
	s.eventsMu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

// tokenMatches compares tokens in constant time for equal lengths.
func tokenMatches(want, got string) bool {
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
