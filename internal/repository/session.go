package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/storekit/storefront/internal/domain/session"
)

const (
	addSessionSQL = `INSERT INTO sessions (id, user_id, created_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getSessionByIDSQL = `SELECT id, user_id, created_at, expires_at, logged_out_at, user_agent, ip_address
		FROM sessions WHERE id = $1`

	updateSessionSQL = `UPDATE sessions SET logged_out_at = $2 WHERE id = $1`
)

var _ session.Repository = (*SessionRepository)(nil)

// SessionRepository implements session.Repository backed by PostgreSQL.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository returns a SessionRepository over the given DB.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Add(ctx context.Context, s *session.Session) error {
	_, err := r.db.q(ctx).Exec(ctx, addSessionSQL,
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt, s.UserAgent, s.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("creating session %q: %w", s.ID, err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	var s session.Session
	err := r.db.q(ctx).QueryRow(ctx, getSessionByIDSQL, id).Scan(
		&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.LoggedOutAt, &s.UserAgent, &s.IPAddress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("getting session %q: %w", id, err)
	}
	return &s, nil
}

func (r *SessionRepository) Update(ctx context.Context, s *session.Session) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateSessionSQL, s.ID, s.LoggedOutAt)
	if err != nil {
		return fmt.Errorf("updating session %q: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}
