// Package observability provides structured logging, OpenTelemetry metrics
// and tracing setup for the gift-exchange service.
//
// All helpers accept a nil logger or recorder and do nothing in that case.
package observability

import (
	"io"
	"log/slog"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/config"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/model"
)

// NewLogger builds a slog logger writing to w in the configured format.
func NewLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h), nil
}

// LogEventCreated logs a new event. The organizer token is never logged.
func LogEventCreated(logger *slog.Logger, e model.Event) {
	if logger == nil {
		return
	}
	logger.Info("event created",
		slog.String("event_id", e.ID),
		slog.String("invite_code", e.InviteCode),
	)
}

// LogParticipantJoined logs a successful join.
func LogParticipantJoined(logger *slog.Logger, eventID, participantID string) {
	if logger == nil {
		return
	}
	logger.Info("participant joined",
		slog.String("event_id", eventID),
		slog.String("participant_id", participantID),
	)
}

// LogJoinRejected logs a join that did not go through.
func LogJoinRejected(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Info("join rejected",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogEventClosed logs a completed draw.
func LogEventClosed(logger *slog.Logger, eventID string, participants, attempts int) {
	if logger == nil {
		return
	}
	logger.Info("event closed",
		slog.String("event_id", eventID),
		slog.Int("participants", participants),
		slog.Int("draw_attempts", attempts),
	)
}

// LogCloseRejected logs a close request that was refused.
func LogCloseRejected(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("close rejected",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogArchiveError logs a failed archive write (non-fatal).
func LogArchiveError(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("archive write failed",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}
