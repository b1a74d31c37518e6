// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/model"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/repository"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/service"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/session"
)

// EventHandler holds all HTTP handlers for the gift-exchange API.
type EventHandler struct {
	svc       *service.EventService
	sessions  *session.Manager
	publicURL string
	logger    *slog.Logger
}

// NewEventHandler constructs an EventHandler. publicURL prefixes the links
// returned to clients and may be empty for relative links.
func NewEventHandler(svc *service.EventService, sessions *session.Manager, publicURL string, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		svc:       svc,
		sessions:  sessions,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain errors onto HTTP statuses.
func (h *EventHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, service.ErrUnknownParticipant):
		writeError(w, http.StatusNotFound, "participant not found in this event")
	case errors.Is(err, repository.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "invalid organizer token")
	case errors.Is(err, model.ErrEventClosed):
		writeError(w, http.StatusConflict, "this event is already closed for new participants")
	case errors.Is(err, model.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, "event is already closed")
	case errors.Is(err, model.ErrInsufficientParticipants):
		writeError(w, http.StatusUnprocessableEntity, "at least 2 participants are required")
	default:
		if h.logger != nil {
			h.logger.Error("request failed", slog.String("error", err.Error()))
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *EventHandler) link(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(a))
	}
	return h.publicURL + fmt.Sprintf(format, escaped...)
}

func (h *EventHandler) inviteURL(e model.Event) string {
	return h.link("/join/%s", e.InviteCode)
}

func (h *EventHandler) manageURL(e model.Event) string {
	return h.link("/events/%s/manage/%s", e.ID, e.OrganizerToken)
}

func (h *EventHandler) viewURL(eventID string) string {
	return h.link("/events/%s/view", eventID)
}

func (h *EventHandler) identifyURL(eventID string) string {
	return h.link("/events/%s/identify", eventID)
}

// ─── Organizer ────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
// Creates a new event and returns the organizer link exactly once.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.EventCreatedResponse{
		Event:          event,
		OrganizerToken: event.OrganizerToken,
		InviteURL:      h.inviteURL(event),
		ManageURL:      h.manageURL(event),
	})
}

// ManageEvent handles GET /events/{id}/manage/{token}
func (h *EventHandler) ManageEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.ManageEvent(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "token"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ManageResponse{
		EventSummary: model.Summarize(event),
		InviteURL:    h.inviteURL(event),
		CanClose:     event.CanClose(),
	})
}

// CloseEvent handles POST /events/{id}/close/{token}
// Runs the draw. The response never contains the assignment.
func (h *EventHandler) CloseEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.CloseEvent(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "token"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ManageResponse{
		EventSummary: model.Summarize(event),
		InviteURL:    h.inviteURL(event),
		CanClose:     false,
	})
}

// ─── Participants ─────────────────────────────────────────────────────────────

// JoinInfo handles GET /join/{code}
// Returns the public event view, or redirects a recognised participant to
// their assignment page.
func (h *EventHandler) JoinInfo(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEventByInviteCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if pid, err := h.sessions.Participant(r, event.ID); err == nil {
		if _, ok := event.Participants[pid]; ok {
			http.Redirect(w, r, h.viewURL(event.ID), http.StatusFound)
			return
		}
	}

	writeJSON(w, http.StatusOK, model.Summarize(event))
}

// Join handles POST /join/{code}
// Adds the caller to the event and remembers them in a cookie.
func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req model.JoinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, participantID, err := h.svc.Join(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.sessions.Set(w, event.ID, participantID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.JoinResponse{
		Event:         model.Summarize(event),
		ParticipantID: participantID,
		ViewURL:       h.viewURL(event.ID),
	})
}

// ViewAssignment handles GET /events/{id}/view
// Shows the caller whom they give a gift to once the event is closed.
func (h *EventHandler) ViewAssignment(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	if _, err := h.svc.GetEvent(r.Context(), eventID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	participantID, err := h.sessions.Participant(r, eventID)
	if err != nil {
		http.Redirect(w, r, h.identifyURL(eventID), http.StatusFound)
		return
	}

	a, err := h.svc.Assignment(r.Context(), eventID, participantID)
	if errors.Is(err, service.ErrUnknownParticipant) {
		http.Redirect(w, r, h.identifyURL(eventID), http.StatusFound)
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := model.AssignmentResponse{
		Event:       a.Event,
		Participant: a.Participant.Summary(),
	}
	if a.Recipient != nil {
		recipient := a.Recipient.Summary()
		resp.AssignedTo = &recipient
	}
	writeJSON(w, http.StatusOK, resp)
}

// Identify handles GET /events/{id}/identify
// Returns the participant list so a returning visitor can pick themselves.
func (h *EventHandler) Identify(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Summarize(event))
}

// SearchParticipants handles GET /events/{id}/search?q=
func (h *EventHandler) SearchParticipants(w http.ResponseWriter, r *http.Request) {
	matches, err := h.svc.SearchParticipants(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if matches == nil {
		matches = []model.SearchMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// ConfirmIdentity handles POST /events/{id}/confirm-identity
// Binds the caller's cookie to an existing participant.
func (h *EventHandler) ConfirmIdentity(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	var req model.ConfirmIdentityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.svc.ConfirmIdentity(r.Context(), eventID, req.ParticipantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.sessions.Set(w, eventID, p.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	http.Redirect(w, r, h.viewURL(eventID), http.StatusSeeOther)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
