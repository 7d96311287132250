//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the notes table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _ string) error {
	// Name, subject and text already live in the notes table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// likeEscaper makes LIKE wildcards in user text match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PageSearch performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) PageSearch(ctx context.Context, query, after string, limit int) ([]NoteRow, error) {
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE (name LIKE ? ESCAPE '\' OR subject LIKE ? ESCAPE '\' OR text LIKE ? ESCAPE '\') AND id > ?
		ORDER BY id
		LIMIT ?
	`, like, like, like, after, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return collectNotes(rows)
}
