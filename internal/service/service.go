// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the event store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/unicode/norm"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/archive"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/idgen"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/model"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/observability"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/repository"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/search"
)

// ErrInvalidInput marks request validation failures. The wrapped message is
// safe to show to users.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnknownParticipant is returned when a participant id does not belong
// to the event.
var ErrUnknownParticipant = errors.New("participant not found in this event")

// Input limits, counted in runes.
const (
	maxNameLength  = 100
	maxQueryLength = 100
)

// EventService orchestrates gift-exchange operations.
type EventService struct {
	store    *repository.EventStore
	archiver archive.Archiver
	metrics  observability.MetricsRecorder
	logger   *slog.Logger
}

// NewEventService constructs an EventService. A nil archiver, metrics
// recorder or logger disables that concern.
func NewEventService(
	store *repository.EventStore,
	archiver archive.Archiver,
	metrics observability.MetricsRecorder,
	logger *slog.Logger,
) *EventService {
	if archiver == nil {
		archiver = archive.Noop{}
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &EventService{store: store, archiver: archiver, metrics: metrics, logger: logger}
}

// Assignment is what a participant sees on their event page.
type Assignment struct {
	Event       model.Event
	Participant model.Participant
	// Recipient is nil while the event is open.
	Recipient *model.Participant
}

// CreateEvent validates the request and registers a new event.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (model.Event, error) {
	ctx, span := observability.StartSpan(ctx, "giftx.create_event")
	name, err := normalizeName(req.Name, "event name")
	if err != nil {
		observability.EndSpan(span, err)
		return model.Event{}, err
	}

	event, err := s.store.Create(name)
	observability.EndSpan(span, err)
	if err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}

	s.metrics.RecordEventCreated(ctx)
	observability.LogEventCreated(s.logger, event)
	return event, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(_ context.Context, id string) (model.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Event{}, repository.ErrNotFound
	}
	return s.store.Get(id)
}

// GetEventByInviteCode resolves a user-entered invite code.
func (s *EventService) GetEventByInviteCode(_ context.Context, code string) (model.Event, error) {
	code = idgen.NormalizeInviteCode(code)
	if !idgen.ValidInviteCode(code) {
		return model.Event{}, repository.ErrNotFound
	}
	return s.store.GetByInviteCode(code)
}

// Join adds a participant to the event behind inviteCode and returns the
// updated event together with the new participant id.
func (s *EventService) Join(ctx context.Context, inviteCode string, req model.JoinRequest) (model.Event, string, error) {
	event, err := s.GetEventByInviteCode(ctx, inviteCode)
	if err != nil {
		return model.Event{}, "", err
	}
	if event.IsClosed() {
		return model.Event{}, "", model.ErrEventClosed
	}

	participantID, err := s.JoinEvent(ctx, event.ID, req.Name)
	if err != nil {
		return model.Event{}, "", err
	}

	event, err = s.store.Get(event.ID)
	if err != nil {
		return model.Event{}, "", fmt.Errorf("reload event: %w", err)
	}
	return event, participantID, nil
}

// JoinEvent validates name and adds a participant to eventID.
func (s *EventService) JoinEvent(ctx context.Context, eventID, name string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "giftx.join_event",
		attribute.String("event.id", eventID))

	name, err := normalizeName(name, "name")
	if err != nil {
		observability.EndSpan(span, err)
		return "", err
	}

	participantID, err := s.store.AddParticipant(eventID, name)
	observability.EndSpan(span, err)
	if err != nil {
		observability.LogJoinRejected(s.logger, eventID, err)
		return "", err
	}

	s.metrics.RecordParticipantJoined(ctx)
	observability.LogParticipantJoined(s.logger, eventID, participantID)
	return participantID, nil
}

// ManageEvent returns the organizer's view of an event.
func (s *EventService) ManageEvent(_ context.Context, eventID, organizerToken string) (model.Event, error) {
	return s.store.VerifyOrganizer(eventID, organizerToken)
}

// CloseEvent runs the draw for eventID. Archive failures are logged and do
// not fail the close.
func (s *EventService) CloseEvent(ctx context.Context, eventID, organizerToken string) (model.Event, error) {
	ctx, span := observability.StartSpan(ctx, "giftx.close_event",
		attribute.String("event.id", eventID))

	res, err := s.store.Close(eventID, organizerToken)
	if err != nil {
		observability.EndSpan(span, err)
		s.metrics.RecordCloseRejected(ctx, closeRejectReason(err))
		observability.LogCloseRejected(s.logger, eventID, err)
		return model.Event{}, err
	}
	span.SetAttributes(
		attribute.Int("event.participants", len(res.Event.Participants)),
		attribute.Int("draw.attempts", res.Attempts),
	)
	observability.EndSpan(span, nil)

	s.metrics.RecordEventClosed(ctx, len(res.Event.Participants), res.Attempts)
	observability.LogEventClosed(s.logger, eventID, len(res.Event.Participants), res.Attempts)

	if err := s.archiver.RecordClosed(ctx, archive.SummaryOf(res.Event, res.Attempts)); err != nil {
		observability.LogArchiveError(s.logger, eventID, err)
	}
	return res.Event, nil
}

// Assignment returns the participant's view: who they are and, once the
// event is closed, whom they give a gift to.
func (s *EventService) Assignment(_ context.Context, eventID, participantID string) (Assignment, error) {
	event, err := s.store.Get(eventID)
	if err != nil {
		return Assignment{}, err
	}
	participant, ok := event.Participants[participantID]
	if !ok {
		return Assignment{}, ErrUnknownParticipant
	}

	out := Assignment{Event: event, Participant: participant}
	if !event.IsClosed() {
		return out, nil
	}

	recipient, err := s.store.AssignmentFor(eventID, participantID)
	if err != nil {
		return Assignment{}, fmt.Errorf("load assignment: %w", err)
	}
	out.Recipient = &recipient
	return out, nil
}

// ConfirmIdentity checks that participantID belongs to eventID.
func (s *EventService) ConfirmIdentity(_ context.Context, eventID, participantID string) (model.Participant, error) {
	event, err := s.store.Get(eventID)
	if err != nil {
		return model.Participant{}, err
	}
	p, ok := event.Participants[strings.TrimSpace(participantID)]
	if !ok {
		return model.Participant{}, ErrUnknownParticipant
	}
	return p, nil
}

// SearchParticipants ranks the event's participants against query.
func (s *EventService) SearchParticipants(_ context.Context, eventID, query string) ([]model.SearchMatch, error) {
	if utf8.RuneCountInString(query) > maxQueryLength {
		return nil, fmt.Errorf("%w: query is too long", ErrInvalidInput)
	}
	event, err := s.store.Get(eventID)
	if err != nil {
		return nil, err
	}
	return search.Rank(event.ParticipantList(), query, search.DefaultLimit), nil
}

// normalizeName trims and NFC-normalizes a user-entered name.
func normalizeName(raw, field string) (string, error) {
	name := norm.NFC.String(strings.TrimSpace(raw))
	if name == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: %s cannot exceed %d characters", ErrInvalidInput, field, maxNameLength)
	}
	return name, nil
}

func closeRejectReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, model.ErrAlreadyClosed):
		return "already_closed"
	case errors.Is(err, model.ErrInsufficientParticipants):
		return "insufficient_participants"
	default:
		return "other"
	}
}
