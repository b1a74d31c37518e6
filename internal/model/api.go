package model

import "time"

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name string `json:"name"`
}

// JoinRequest is the payload for joining an event by invite code.
type JoinRequest struct {
	Name string `json:"name"`
}

// ConfirmIdentityRequest claims an existing participant identity.
type ConfirmIdentityRequest struct {
	ParticipantID string `json:"participant_id"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ParticipantSummary is the public view of a participant.
type ParticipantSummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// EventSummary is the view of an event visible to anyone with the invite code.
type EventSummary struct {
	Event
	ParticipantCount int                  `json:"participant_count"`
	Participants     []ParticipantSummary `json:"participants"`
}

// EventCreatedResponse is returned once to the organizer on creation. It is
// the only response that carries the organizer token.
type EventCreatedResponse struct {
	Event          Event  `json:"event"`
	OrganizerToken string `json:"organizer_token"`
	InviteURL      string `json:"invite_url"`
	ManageURL      string `json:"manage_url"`
}

// ManageResponse is the organizer's view of an event.
type ManageResponse struct {
	EventSummary
	InviteURL string `json:"invite_url"`
	CanClose  bool   `json:"can_close"`
}

// JoinResponse is returned after joining an event.
type JoinResponse struct {
	Event         EventSummary `json:"event"`
	ParticipantID string       `json:"participant_id"`
	ViewURL       string       `json:"view_url"`
}

// AssignmentResponse tells a participant whom they give a gift to.
// AssignedTo is nil while the event is open.
type AssignmentResponse struct {
	Event       Event               `json:"event"`
	Participant ParticipantSummary  `json:"participant"`
	AssignedTo  *ParticipantSummary `json:"assigned_to"`
}

// SearchMatch is one ranked result of a participant name search.
type SearchMatch struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Summarize builds the public view of e.
func Summarize(e Event) EventSummary {
	list := e.ParticipantList()
	out := make([]ParticipantSummary, len(list))
	for i, p := range list {
		out[i] = p.Summary()
	}
	return EventSummary{
		Event:            e,
		ParticipantCount: len(out),
		Participants:     out,
	}
}

// Summary strips the assignment from p.
func (p Participant) Summary() ParticipantSummary {
	return ParticipantSummary{ID: p.ID, Name: p.Name, JoinedAt: p.JoinedAt}
}
