// Package session holds the session model created on successful login.
package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no session matches the lookup key.
var ErrNotFound = errors.New("session not found")

// TTL is the fixed lifetime of a session from its creation time.
const TTL = 24 * time.Hour

// Session represents an authenticated browser/device session. Active-ness is
// derived on read: not logged out and not past expiry.
type Session struct {
	ID          string
	UserID      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LoggedOutAt *time.Time
	UserAgent   string
	IPAddress   string
}

// ActiveAt reports whether the session is usable at the given instant.
func (s *Session) ActiveAt(now time.Time) bool {
	return s.LoggedOutAt == nil && now.Before(s.ExpiresAt)
}

// New builds a session for the given user with a generated id and the fixed
// expiry window.
func New(userID, userAgent, ipAddress string, now time.Time) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}
}

// Repository defines persistence operations for sessions.
type Repository interface {
	Add(ctx context.Context, s *Session) error
	// GetByID returns a session by id. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*Session, error)
	// Update persists the logout timestamp of an existing session.
	Update(ctx context.Context, s *Session) error
}
