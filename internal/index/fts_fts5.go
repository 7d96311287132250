//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			name,
			subject,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, name, subject, text string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO notes_fts (id, name, subject, text) VALUES (?, ?, ?, ?)`,
		id, name, subject, text)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
}

// matchExpr turns free text into an FTS5 expression: every whitespace
// separated term becomes a quoted string, so punctuation is never parsed as
// query syntax. Terms are implicitly ANDed.
func matchExpr(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// PageSearch performs an FTS5 match and pages the hits in id order.
func (db *DB) PageSearch(ctx context.Context, query, after string, limit int) ([]NoteRow, error) {
	expr := matchExpr(query)
	if expr == "" {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE id IN (SELECT id FROM notes_fts WHERE notes_fts MATCH ?) AND id > ?
		ORDER BY id
		LIMIT ?
	`, expr, after, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return collectNotes(rows)
}
