package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "noteshare-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedNotes(t *testing.T, db *DB, subject, owner string, from, to int) {
	t.Helper()
	for i := from; i <= to; i++ {
		err := db.InsertNote(context.Background(), NoteRow{
			ID:      fmt.Sprintf("n%03d", i),
			OwnerID: owner,
			Name:    fmt.Sprintf("%s notes %d", subject, i),
			Subject: subject,
			Kind:    models.KindPDF,
			Text:    "recognized text " + subject,
		})
		if err != nil {
			t.Fatalf("InsertNote: %v", err)
		}
	}
}

func ids(rows []NoteRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"users", "notes", "stars", "verifications", "preferences"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestInsertAndGetNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	row := NoteRow{
		ID:         "a1",
		OwnerID:    "u1",
		Name:       "Linear algebra",
		Subject:    "Math",
		PreviewRef: "notes/a1/preview.png",
		Kind:       models.KindPDF,
		BlobRef:    "notes/a1/doc.pdf",
		Checksum:   "abc",
	}
	if err := db.InsertNote(ctx, row); err != nil {
		t.Fatalf("InsertNote: %v", err)
	}
	got, err := db.GetNote(ctx, "a1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Name != row.Name || got.Subject != "Math" || got.BlobRef != row.BlobRef {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
	if err := db.InsertNote(ctx, row); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate insert err = %v", err)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetNote(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPageBySubject_Cursor(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedNotes(t, db, "Math", "u1", 1, 25)
	seedNotes(t, db, "Physics", "u1", 100, 104)

	first, err := db.PageBySubject(ctx, "Math", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 10 || first[0].ID != "n001" || first[9].ID != "n010" {
		t.Fatalf("first page = %v", ids(first))
	}
	second, _ := db.PageBySubject(ctx, "Math", first[9].ID, 10)
	if len(second) != 10 || second[0].ID != "n011" {
		t.Fatalf("second page = %v", ids(second))
	}
	third, _ := db.PageBySubject(ctx, "Math", second[9].ID, 10)
	if len(third) != 5 || third[4].ID != "n025" {
		t.Fatalf("third page = %v", ids(third))
	}
	empty, _ := db.PageBySubject(ctx, "Math", "n025", 10)
	if len(empty) != 0 {
		t.Errorf("past the end = %v", ids(empty))
	}
	for _, r := range append(append(first, second...), third...) {
		if r.Subject != "Math" {
			t.Errorf("subject filter leaked %q", r.Subject)
		}
	}
}

func TestPageSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedNotes(t, db, "Math", "u1", 1, 3)
	_ = db.InsertNote(ctx, NoteRow{ID: "z9", OwnerID: "u2", Name: "Cell biology", Subject: "Biology", Text: "mitochondria"})

	rows, err := db.PageSearch(ctx, "mitochondria", "", 10)
	if err != nil {
		t.Fatalf("PageSearch: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "z9" {
		t.Errorf("search = %v", ids(rows))
	}
}

func TestStarIsIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedNotes(t, db, "Math", "u1", 1, 1)

	changed, err := db.Star(ctx, "u2", "n001")
	if err != nil || !changed {
		t.Fatalf("Star = %v, %v", changed, err)
	}
	changed, _ = db.Star(ctx, "u2", "n001")
	if changed {
		t.Error("second star should not change anything")
	}
	n, _ := db.GetNote(ctx, "n001")
	if n.Stars != 1 {
		t.Errorf("stars = %d, want 1", n.Stars)
	}
	starred, _ := db.IsStarred(ctx, "u2", "n001")
	if !starred {
		t.Error("expected starred")
	}

	changed, _ = db.Unstar(ctx, "u2", "n001")
	if !changed {
		t.Error("unstar should report a change")
	}
	changed, _ = db.Unstar(ctx, "u2", "n001")
	if changed {
		t.Error("second unstar should be a no-op")
	}
	n, _ = db.GetNote(ctx, "n001")
	if n.Stars != 0 {
		t.Errorf("stars = %d, want 0", n.Stars)
	}

	if _, err := db.Star(ctx, "u2", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("star missing note err = %v", err)
	}
}

func TestPageStarred(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedNotes(t, db, "Math", "u1", 1, 12)
	for _, id := range []string{"n002", "n005", "n011"} {
		if _, err := db.Star(ctx, "u9", id); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := db.PageStarred(ctx, "u9", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	got := ids(rows)
	if len(got) != 3 || got[0] != "n002" || got[2] != "n011" {
		t.Errorf("starred = %v", got)
	}
	rows, _ = db.PageStarred(ctx, "u9", "n005", 10)
	if len(rows) != 1 || rows[0].ID != "n011" {
		t.Errorf("starred after n005 = %v", ids(rows))
	}
}

func TestDeleteNote_OwnerOnly(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedNotes(t, db, "Math", "owner", 1, 1)
	_, _ = db.Star(ctx, "fan", "n001")

	if err := db.DeleteNote(ctx, "n001", "intruder"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if err := db.DeleteNote(ctx, "n001", "owner"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := db.GetNote(ctx, "n001"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("note still present")
	}
	rows, _ := db.PageStarred(ctx, "fan", "", 10)
	if len(rows) != 0 {
		t.Error("stars should be removed with the note")
	}
	if err := db.DeleteNote(ctx, "n001", "owner"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestSubjectsAndOwner(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedNotes(t, db, "Physics", "a", 1, 2)
	seedNotes(t, db, "Math", "b", 3, 4)

	subjects, err := db.Subjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(subjects) != 2 || subjects[0] != "Math" || subjects[1] != "Physics" {
		t.Errorf("subjects = %v", subjects)
	}
	mine, _ := db.PageByOwner(ctx, "b", "", 10)
	if len(mine) != 2 || mine[0].ID != "n003" {
		t.Errorf("owner page = %v", ids(mine))
	}
	all, _ := db.PageAll(ctx, "n002", 10)
	if len(all) != 2 {
		t.Errorf("all after n002 = %v", ids(all))
	}
}

func TestUsers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	u := models.User{ID: "u1", Email: "a@example.com", PasswordHash: "h", Name: "Ada"}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := db.CreateUser(ctx, models.User{ID: "u2", Email: "a@example.com"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate email err = %v", err)
	}
	// Users without phone numbers must not collide on the phone index.
	if err := db.CreateUser(ctx, models.User{ID: "u3", Email: "b@example.com"}); err != nil {
		t.Errorf("second phoneless user: %v", err)
	}

	got, err := db.UserByEmail(ctx, "a@example.com")
	if err != nil || got.ID != "u1" || got.Phone != "" {
		t.Fatalf("UserByEmail = %+v, %v", got, err)
	}
	if err := db.UpdateProfile(ctx, "u1", "Ada L", "MIT"); err != nil {
		t.Fatal(err)
	}
	got, _ = db.UserByID(ctx, "u1")
	if got.Name != "Ada L" || got.College != "MIT" {
		t.Errorf("profile = %+v", got)
	}
	if _, err := db.UserByPhone(ctx, "+100"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UserByPhone err = %v", err)
	}
	if err := db.UpdateProfile(ctx, "nobody", "x", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateProfile missing err = %v", err)
	}
}

func TestVerifications(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	v := models.Verification{ID: "v1", Phone: "+15550100", Code: "123456", ExpiresAt: time.Now().Add(5 * time.Minute)}
	if err := db.SaveVerification(ctx, v); err != nil {
		t.Fatal(err)
	}
	_ = db.IncrementAttempts(ctx, "v1")
	got, err := db.GetVerification(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != "123456" || got.Attempts != 1 {
		t.Errorf("verification = %+v", got)
	}
	_ = db.DeleteVerification(ctx, "v1")
	if _, err := db.GetVerification(ctx, "v1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestPrefs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, ok, _ := db.GetPref(ctx, "u1", "interests"); ok {
		t.Error("unset pref reported as set")
	}
	_ = db.SetPref(ctx, "u1", "interests", `["a"]`)
	_ = db.SetPref(ctx, "u1", "interests", `["b"]`)
	v, ok, err := db.GetPref(ctx, "u1", "interests")
	if err != nil || !ok || v != `["b"]` {
		t.Errorf("GetPref = %q, %v, %v", v, ok, err)
	}
}
