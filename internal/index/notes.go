package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/noteshare/internal/apperr"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID         string
	OwnerID    string
	Name       string
	Subject    string
	Stars      int
	PreviewRef string
	Kind       string
	Pages      int
	Text       string
	BlobRef    string
	Checksum   string
	CreatedAt  time.Time
}

const noteColumns = `id, owner_id, name, subject, stars, preview_ref, kind, pages, text, blob_ref, checksum, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (NoteRow, error) {
	var n NoteRow
	err := s.Scan(&n.ID, &n.OwnerID, &n.Name, &n.Subject, &n.Stars, &n.PreviewRef,
		&n.Kind, &n.Pages, &n.Text, &n.BlobRef, &n.Checksum, &n.CreatedAt)
	return n, err
}

func collectNotes(rows *sql.Rows) ([]NoteRow, error) {
	defer rows.Close()
	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// InsertNote stores a new note and its search entry within a transaction.
func (db *DB) InsertNote(ctx context.Context, n NoteRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.OwnerID, n.Name, n.Subject, n.Stars, n.PreviewRef,
		n.Kind, n.Pages, n.Text, n.BlobRef, n.Checksum, n.CreatedAt)
	if err != nil {
		if isConstraint(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("index: insert note: %w", err)
	}

	if err := ftsUpsert(tx, n.ID, n.Name, n.Subject, n.Text); err != nil {
		return err
	}
	return tx.Commit()
}

// GetNote returns a single note by ID.
func (db *DB) GetNote(ctx context.Context, id string) (*NoteRow, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// DeleteNote removes a note owned by ownerID, its stars and search entry.
func (db *DB) DeleteNote(ctx context.Context, id, ownerID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM notes WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("index: lookup owner: %w", err)
	}
	if owner != ownerID {
		return apperr.ErrForbidden
	}

	ftsDelete(tx, id)
	if _, err := tx.ExecContext(ctx, `DELETE FROM stars WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("index: delete stars: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// Star records that userID starred noteID and bumps the note's star count.
// It reports false when the star already existed.
func (db *DB) Star(ctx context.Context, userID, noteID string) (bool, error) {
	return db.toggleStar(ctx, userID, noteID, true)
}

// Unstar removes a star and decrements the count. It reports false when
// there was nothing to remove.
func (db *DB) Unstar(ctx context.Context, userID, noteID string) (bool, error) {
	return db.toggleStar(ctx, userID, noteID, false)
}

func (db *DB) toggleStar(ctx context.Context, userID, noteID string, on bool) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM notes WHERE id = ?`, noteID).Scan(&exists); err != nil {
		return false, fmt.Errorf("index: lookup note: %w", err)
	}
	if exists == 0 {
		return false, apperr.ErrNotFound
	}

	var res sql.Result
	if on {
		res, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO stars (user_id, note_id) VALUES (?, ?)`, userID, noteID)
	} else {
		res, err = tx.ExecContext(ctx, `DELETE FROM stars WHERE user_id = ? AND note_id = ?`, userID, noteID)
	}
	if err != nil {
		return false, fmt.Errorf("index: toggle star: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	delta := `stars + 1`
	if !on {
		delta = `max(stars - 1, 0)`
	}
	if _, err := tx.ExecContext(ctx, `UPDATE notes SET stars = `+delta+` WHERE id = ?`, noteID); err != nil {
		return false, fmt.Errorf("index: update star count: %w", err)
	}
	return true, tx.Commit()
}

// IsStarred reports whether userID has starred noteID.
func (db *DB) IsStarred(ctx context.Context, userID, noteID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM stars WHERE user_id = ? AND note_id = ?`, userID, noteID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("index: is starred: %w", err)
	}
	return n > 0, nil
}

// Subjects returns every distinct subject, sorted.
func (db *DB) Subjects(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT subject FROM notes WHERE subject != '' ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("index: subjects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
