// Package index provides the SQLite-backed document store for users, notes,
// stars, verification codes and preferences, with optional FTS5 search.
package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	phone         TEXT,
	email         TEXT,
	password_hash TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	college       TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_phone ON users(phone) WHERE phone IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email IS NOT NULL;

CREATE TABLE IF NOT EXISTS notes (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	stars       INTEGER NOT NULL DEFAULT 0,
	preview_ref TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT 'pdf',
	pages       INTEGER NOT NULL DEFAULT 0,
	text        TEXT NOT NULL DEFAULT '',
	blob_ref    TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_subject ON notes(subject, id);
CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes(owner_id, id);

CREATE TABLE IF NOT EXISTS stars (
	user_id    TEXT NOT NULL,
	note_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, note_id)
);

CREATE INDEX IF NOT EXISTS idx_stars_note ON stars(note_id);

CREATE TABLE IF NOT EXISTS verifications (
	id         TEXT PRIMARY KEY,
	phone      TEXT NOT NULL,
	code       TEXT NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
	user_id TEXT NOT NULL,
	key     TEXT NOT NULL,
	value   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, key)
);
`

// DB wraps a sql.DB with store-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks the connection; used by the readiness probe.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
