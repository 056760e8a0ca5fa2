// Package user holds the account model consumed by the login service.
package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no account matches the lookup key.
var ErrNotFound = errors.New("user not found")

// User is the login-relevant subset of an account.
//
// FailedLoginAttempts and LastFailedLoginAttempt together encode the lockout
// state: LastFailedLoginAttempt is non-nil whenever FailedLoginAttempts > 0
// and nil after any successful reset.
type User struct {
	ID                     string
	Email                  string
	PasswordHash           string
	EmailValidated         bool
	Deleted                bool
	FailedLoginAttempts    int
	LastFailedLoginAttempt *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Repository defines the account lookups and the single mutation the login
// state machine performs.
type Repository interface {
	// FindByEmail looks up an account by email, case-insensitively.
	// Returns ErrNotFound when no account matches.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// ExistsByID reports whether an account with the given id exists.
	ExistsByID(ctx context.Context, id string) (bool, error)
	// Update persists the lockout counters of an existing account.
	Update(ctx context.Context, u *User) error
}
