package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetPref returns the stored value for (userID, key). ok is false when unset.
func (db *DB) GetPref(ctx context.Context, userID, key string) (value string, ok bool, err error) {
	err = db.conn.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: get pref: %w", err)
	}
	return value, true, nil
}

// SetPref stores value under (userID, key), replacing any previous value.
func (db *DB) SetPref(ctx context.Context, userID, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO preferences (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`, userID, key, value)
	if err != nil {
		return fmt.Errorf("index: set pref: %w", err)
	}
	return nil
}
