// Package auth implements credential verification and the account-lockout
// state machine around it.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/storekit/storefront/internal/domain/outcome"
	"github.com/storekit/storefront/internal/domain/session"
	"github.com/storekit/storefront/internal/domain/user"
)

// Lockout policy constants. Both are evaluated against the persisted
// LastFailedLoginAttempt timestamp.
const (
	MaxFailedAttempts = 3
	LockoutWindow     = 10 * time.Minute
)

// User-facing messages. The invalid-credentials message is byte-identical for
// unknown email and wrong password so that login cannot be used to probe
// which emails exist.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgAccountLocked      = "Account is locked due to too many failed login attempts"
	msgEmailNotValidated  = "Please validate your email address before logging in"
	msgAccountDeleted     = "Account has been deleted"
	msgMissingCredentials = "Email and password are required"
)

// LoginRequest carries the credentials and client metadata for one attempt.
type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginResult is the session payload returned on successful authentication.
type LoginResult struct {
	SessionID string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LogoutResult confirms session termination.
type LogoutResult struct {
	SessionID   string
	LoggedOutAt time.Time
}

// Service runs the login/lockout state machine. The lockout state is derived
// entirely from the user's FailedLoginAttempts counter and
// LastFailedLoginAttempt timestamp; no in-process state is kept between
// attempts.
type Service struct {
	users    user.Repository
	sessions session.Repository
	hasher   PasswordHasher
	clock    func() time.Time
	lg       *zap.Logger
}

// NewService creates a login Service. clock may be nil, in which case
// time.Now is used.
func NewService(
	users user.Repository,
	sessions session.Repository,
	hasher PasswordHasher,
	clock func() time.Time,
	lg *zap.Logger,
) *Service {
	if clock == nil {
		clock = time.Now
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		clock:    clock,
		lg:       lg,
	}
}

// Login validates the credentials and advances the lockout state machine.
//
// Only the two branches that actually check a password ever write: a failed
// check increments the attempt counter, a successful check resets it in a
// single consolidated update and creates a session. The not-found, deleted,
// locked, and unvalidated-email branches perform no writes.
func (s *Service) Login(ctx context.Context, req LoginRequest) outcome.Outcome[LoginResult] {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return outcome.Fail[LoginResult](outcome.CodeValidation, msgMissingCredentials)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return outcome.Fail[LoginResult](outcome.CodeAuthentication, msgInvalidCredentials)
		}
		s.lg.Error("login: find user", zap.Error(err))
		return outcome.Internal[LoginResult](err)
	}

	if u.Deleted {
		return outcome.Fail[LoginResult](outcome.CodeGone, msgAccountDeleted)
	}

	now := s.clock()
	if s.isLocked(u, now) {
		return outcome.Fail[LoginResult](outcome.CodeRateLimited, msgAccountLocked)
	}

	if !u.EmailValidated {
		return outcome.Fail[LoginResult](outcome.CodeAuthorization, msgEmailNotValidated)
	}

	if !s.hasher.Verify(u.PasswordHash, req.Password) {
		// An expired lockout restarts the count instead of stacking on the
		// stale window.
		if u.FailedLoginAttempts >= MaxFailedAttempts {
			u.FailedLoginAttempts = 0
		}
		u.FailedLoginAttempts++
		u.LastFailedLoginAttempt = &now
		if err := s.users.Update(ctx, u); err != nil {
			s.lg.Error("login: record failed attempt", zap.Error(err))
			return outcome.Internal[LoginResult](err)
		}
		return outcome.Fail[LoginResult](outcome.CodeAuthentication, msgInvalidCredentials)
	}

	// Success: one consolidated update covers both lockout expiry and the
	// attempt-counter reset.
	u.FailedLoginAttempts = 0
	u.LastFailedLoginAttempt = nil
	if err := s.users.Update(ctx, u); err != nil {
		s.lg.Error("login: reset attempts", zap.Error(err))
		return outcome.Internal[LoginResult](err)
	}

	sess := session.New(u.ID, req.UserAgent, req.IPAddress, now)
	if err := s.sessions.Add(ctx, sess); err != nil {
		s.lg.Error("login: create session", zap.Error(err))
		return outcome.Internal[LoginResult](err)
	}

	return outcome.Ok(LoginResult{
		SessionID: sess.ID,
		UserID:    u.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Logout terminates a session by stamping its logout time. Terminating an
// already-inactive session is reported as 404.
func (s *Service) Logout(ctx context.Context, sessionID string) outcome.Outcome[LogoutResult] {
	if sessionID == "" {
		return outcome.Fail[LogoutResult](outcome.CodeValidation, "Session id is required")
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return outcome.Fail[LogoutResult](outcome.CodeNotFound, "Session not found")
		}
		s.lg.Error("logout: find session", zap.Error(err))
		return outcome.Internal[LogoutResult](err)
	}

	now := s.clock()
	if !sess.ActiveAt(now) {
		return outcome.Fail[LogoutResult](outcome.CodeNotFound, "Session not found")
	}

	sess.LoggedOutAt = &now
	if err := s.sessions.Update(ctx, sess); err != nil {
		s.lg.Error("logout: update session", zap.Error(err))
		return outcome.Internal[LogoutResult](err)
	}

	return outcome.Ok(LogoutResult{SessionID: sess.ID, LoggedOutAt: now})
}

// isLocked reports whether the account is inside an active lockout window.
// An elapsed window is treated as unlocked; the counter is restarted on the
// next password check.
func (s *Service) isLocked(u *user.User, now time.Time) bool {
	if u.FailedLoginAttempts < MaxFailedAttempts || u.LastFailedLoginAttempt == nil {
		return false
	}
	return now.Sub(*u.LastFailedLoginAttempt) < LockoutWindow
}
