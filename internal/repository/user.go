package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/storekit/storefront/internal/domain/user"
)

const (
	findUserByEmailSQL = `SELECT id, email, password_hash, email_validated, deleted,
		failed_login_attempts, last_failed_login_attempt, created_at, updated_at
		FROM users WHERE lower(email) = lower($1)`

	userExistsByIDSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND NOT deleted)`

	updateUserSQL = `UPDATE users SET
		failed_login_attempts = $2, last_failed_login_attempt = $3, updated_at = now()
		WHERE id = $1`

	insertUserSQL = `INSERT INTO users (id, email, password_hash, email_validated, deleted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db *DB
}

// NewUserRepository returns a UserRepository over the given DB.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks up an account case-insensitively by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := r.db.q(ctx).QueryRow(ctx, findUserByEmailSQL, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.EmailValidated, &u.Deleted,
		&u.FailedLoginAttempts, &u.LastFailedLoginAttempt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return &u, nil
}

// ExistsByID reports whether a non-deleted account with the given id exists.
func (r *UserRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.q(ctx).QueryRow(ctx, userExistsByIDSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user %q: %w", id, err)
	}
	return exists, nil
}

// Update persists the lockout counters.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateUserSQL,
		u.ID, u.FailedLoginAttempts, u.LastFailedLoginAttempt,
	)
	if err != nil {
		return fmt.Errorf("updating user %q: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Add inserts a new account. Used by seeding; existing rows are left alone.
func (r *UserRepository) Add(ctx context.Context, u *user.User) error {
	_, err := r.db.q(ctx).Exec(ctx, insertUserSQL,
		u.ID, u.Email, u.PasswordHash, u.EmailValidated, u.Deleted,
	)
	if err != nil {
		return fmt.Errorf("inserting user %q: %w", u.ID, err)
	}
	return nil
}
