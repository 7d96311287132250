package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/models"
)

// SaveVerification stores a pending phone code.
func (db *DB) SaveVerification(ctx context.Context, v models.Verification) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO verifications (id, phone, code, attempts, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, v.ID, v.Phone, v.Code, v.Attempts, v.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("index: save verification: %w", err)
	}
	return nil
}

// GetVerification returns a pending code by verification ID.
func (db *DB) GetVerification(ctx context.Context, id string) (*models.Verification, error) {
	var v models.Verification
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, phone, code, attempts, expires_at FROM verifications WHERE id = ?`, id).
		Scan(&v.ID, &v.Phone, &v.Code, &v.Attempts, &v.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get verification: %w", err)
	}
	return &v, nil
}

// IncrementAttempts records a failed confirmation attempt.
func (db *DB) IncrementAttempts(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `UPDATE verifications SET attempts = attempts + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: increment attempts: %w", err)
	}
	return nil
}

// DeleteVerification removes a pending code once used or expired.
func (db *DB) DeleteVerification(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM verifications WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete verification: %w", err)
	}
	return nil
}
