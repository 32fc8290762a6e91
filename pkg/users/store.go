package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store interfaces with the users table.
type Store struct {
	DB *sqlx.DB
}

// FindByID reads an active user by id.
// Deactivated users are reported as ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, email, name, role, password_hash, is_active, created_at, updated_at
		FROM users WHERE id = $1 AND is_active;`
	var u User
	if err := s.DB.GetContext(ctx, &u, query, id); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByEmail reads an active user by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT id, email, name, role, password_hash, is_active, created_at, updated_at
		FROM users WHERE email = $1 AND is_active;`
	var u User
	if err := s.DB.GetContext(ctx, &u, query, email); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new active user.
func (s *Store) Create(ctx context.Context, u *User) error {
	now := time.Now()
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now
	const query = `
		INSERT INTO users (id, email, name, role, password_hash, is_active, created_at, updated_at)
		VALUES (:id, :email, :name, :role, :password_hash, :is_active, :created_at, :updated_at);`
	_, err := s.DB.NamedExecContext(ctx, query, u)
	return err
}

// Deactivate soft-deletes a user. Subsequent lookups return ErrNotFound.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE users SET is_active = FALSE, updated_at = $2 WHERE id = $1;`
	res, err := s.DB.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
