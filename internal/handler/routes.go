package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the chi router with the global middleware stack and all
// API routes.
func NewRouter(h *EventHandler, logger *slog.Logger, allowedOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger))
	r.Use(CORS(allowedOrigin))

	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/{id}/manage/{token}", h.ManageEvent)
		r.Post("/{id}/close/{token}", h.CloseEvent)
		r.Get("/{id}/view", h.ViewAssignment)
		r.Get("/{id}/identify", h.Identify)
		r.Get("/{id}/search", h.SearchParticipants)
		r.Post("/{id}/confirm-identity", h.ConfirmIdentity)
	})

	r.Get("/join/{code}", h.JoinInfo)
	r.Post("/join/{code}", h.Join)

	return r
}
