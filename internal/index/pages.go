package index

import (
	"context"
	"fmt"
)

// Cursor queries. Every page is ordered by id and starts strictly after the
// given cursor; an empty cursor selects the first page.

const defaultPageLimit = 10

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	return limit
}

// PageAll returns notes across all subjects.
func (db *DB) PageAll(ctx context.Context, after string, limit int) ([]NoteRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE id > ?
		ORDER BY id
		LIMIT ?
	`, after, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: page all: %w", err)
	}
	return collectNotes(rows)
}

// PageBySubject returns notes whose subject equals subject.
func (db *DB) PageBySubject(ctx context.Context, subject, after string, limit int) ([]NoteRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE subject = ? AND id > ?
		ORDER BY id
		LIMIT ?
	`, subject, after, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: page by subject: %w", err)
	}
	return collectNotes(rows)
}

// PageStarred returns the notes userID has starred.
func (db *DB) PageStarred(ctx context.Context, userID, after string, limit int) ([]NoteRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.id, n.owner_id, n.name, n.subject, n.stars, n.preview_ref,
		       n.kind, n.pages, n.text, n.blob_ref, n.checksum, n.created_at
		FROM notes n
		JOIN stars s ON s.note_id = n.id
		WHERE s.user_id = ? AND n.id > ?
		ORDER BY n.id
		LIMIT ?
	`, userID, after, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: page starred: %w", err)
	}
	return collectNotes(rows)
}

// PageByOwner returns the notes uploaded by ownerID.
func (db *DB) PageByOwner(ctx context.Context, ownerID, after string, limit int) ([]NoteRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE owner_id = ? AND id > ?
		ORDER BY id
		LIMIT ?
	`, ownerID, after, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: page by owner: %w", err)
	}
	return collectNotes(rows)
}
