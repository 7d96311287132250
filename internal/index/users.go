package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/models"
)

const userColumns = `id, coalesce(phone, ''), coalesce(email, ''), password_hash, name, college, created_at`

// CreateUser inserts a new account. A duplicate phone or email yields
// apperr.ErrAlreadyExists.
func (db *DB) CreateUser(ctx context.Context, u models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, phone, email, password_hash, name, college, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, nullable(u.Phone), nullable(u.Email), u.PasswordHash, u.Name, u.College, u.CreatedAt)
	if err != nil {
		if isConstraint(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("index: create user: %w", err)
	}
	return nil
}

// UserByID looks up an account by ID.
func (db *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	return db.userWhere(ctx, `id = ?`, id)
}

// UserByEmail looks up an account by email address.
func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.userWhere(ctx, `email = ?`, email)
}

// UserByPhone looks up an account by phone number.
func (db *DB) UserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return db.userWhere(ctx, `phone = ?`, phone)
}

func (db *DB) userWhere(ctx context.Context, cond string, arg any) (*models.User, error) {
	var u models.User
	err := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+cond, arg).
		Scan(&u.ID, &u.Phone, &u.Email, &u.PasswordHash, &u.Name, &u.College, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get user: %w", err)
	}
	return &u, nil
}

// UpdateProfile replaces the editable profile fields of a user.
func (db *DB) UpdateProfile(ctx context.Context, id, name, college string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET name = ?, college = ? WHERE id = ?`, name, college, id)
	if err != nil {
		return fmt.Errorf("index: update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
