// Package session remembers which participant a browser belongs to. The
// identity is kept in a per-event cookie holding an HS256-signed JWT.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned when no valid participant cookie exists for
// the event.
var ErrInvalidSession = errors.New("invalid participant session")

// Issuer is the JWT issuer claim for participant sessions.
const Issuer = "gift-exchange"

// cookiePrefix is followed by the event id.
const cookiePrefix = "participant_"

// Config controls cookie signing and attributes.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
	Now    func() time.Time
}

// claims is the JWT body of a participant cookie.
type claims struct {
	jwt.RegisteredClaims
	EventID       string `json:"event_id"`
	ParticipantID string `json:"participant_id"`
}

// Manager issues and reads participant cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager constructs a Manager. The secret must not be empty.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{secret: cfg.Secret, ttl: cfg.TTL, secure: cfg.Secure, now: cfg.Now}, nil
}

// CookieName returns the cookie name used for eventID.
func CookieName(eventID string) string {
	return cookiePrefix + eventID
}

// Issue returns a signed token binding participantID to eventID.
func (m *Manager) Issue(eventID, participantID string) (string, error) {
	now := m.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   participantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		EventID:       eventID,
		ParticipantID: participantID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Parse validates token and returns the participant id it carries for
// eventID.
func (m *Manager) Parse(token, eventID string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidSession
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if c.EventID != eventID || c.ParticipantID == "" {
		return "", ErrInvalidSession
	}
	return c.ParticipantID, nil
}

// Set writes the participant cookie for eventID.
func (m *Manager) Set(w http.ResponseWriter, eventID, participantID string) error {
	token, err := m.Issue(eventID, participantID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(eventID),
		Value:    token,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Participant reads the participant id for eventID from r's cookies.
func (m *Manager) Participant(r *http.Request, eventID string) (string, error) {
	cookie, err := r.Cookie(CookieName(eventID))
	if err != nil {
		return "", ErrInvalidSession
	}
	return m.Parse(cookie.Value, eventID)
}
