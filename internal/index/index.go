package index

import (
	"context"

	"github.com/starford/noteshare/internal/models"
)

// NoteStore is the note-facing subset of the store.
// Consumers should depend on these interfaces rather than the concrete *DB
// type to facilitate testing with fakes.
type NoteStore interface {
	InsertNote(ctx context.Context, n NoteRow) error
	GetNote(ctx context.Context, id string) (*NoteRow, error)
	DeleteNote(ctx context.Context, id, ownerID string) error
	Star(ctx context.Context, userID, noteID string) (bool, error)
	Unstar(ctx context.Context, userID, noteID string) (bool, error)
	IsStarred(ctx context.Context, userID, noteID string) (bool, error)
	Subjects(ctx context.Context) ([]string, error)
	PageAll(ctx context.Context, after string, limit int) ([]NoteRow, error)
	PageBySubject(ctx context.Context, subject, after string, limit int) ([]NoteRow, error)
	PageSearch(ctx context.Context, query, after string, limit int) ([]NoteRow, error)
	PageStarred(ctx context.Context, userID, after string, limit int) ([]NoteRow, error)
	PageByOwner(ctx context.Context, ownerID, after string, limit int) ([]NoteRow, error)
}

// UserStore is the account-facing subset of the store.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, name, college string) error
	SaveVerification(ctx context.Context, v models.Verification) error
	GetVerification(ctx context.Context, id string) (*models.Verification, error)
	IncrementAttempts(ctx context.Context, id string) error
	DeleteVerification(ctx context.Context, id string) error
}

// PrefStore persists per-user key-value preferences.
type PrefStore interface {
	GetPref(ctx context.Context, userID, key string) (string, bool, error)
	SetPref(ctx context.Context, userID, key, value string) error
}

// Verify *DB satisfies the store interfaces at compile time.
var (
	_ NoteStore = (*DB)(nil)
	_ UserStore = (*DB)(nil)
	_ PrefStore = (*DB)(nil)
)

// Summary maps a stored row to its listing representation.
func Summary(r NoteRow) models.NoteSummary {
	return models.NoteSummary{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Name:       r.Name,
		Subject:    r.Subject,
		Stars:      r.Stars,
		PreviewRef: r.PreviewRef,
	}
}
