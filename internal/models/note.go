// Package models defines the domain types for Noteshare.
package models

import "time"

// Note kinds.
const (
	KindPDF    = "pdf"
	KindImages = "images"
)

// NoteSummary is the listing representation of an uploaded note.
// Values are immutable once fetched; a re-fetch yields a new value.
type NoteSummary struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Name       string `json:"name"`
	Subject    string `json:"subject"`
	Stars      int    `json:"stars"`
	PreviewRef string `json:"preview_ref,omitempty"`
}

// Key returns the note ID, which doubles as the listing cursor.
func (n NoteSummary) Key() string { return n.ID }

// Note is the full representation of an uploaded note.
type Note struct {
	NoteSummary
	Kind      string    `json:"kind"`
	Pages     int       `json:"pages"`
	Text      string    `json:"text,omitempty"`
	BlobRef   string    `json:"blob_ref"`
	Checksum  string    `json:"checksum"`
	Starred   bool      `json:"starred"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a registered account with its profile fields.
type User struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	College      string    `json:"college,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Verification is a pending phone sign-in code.
type Verification struct {
	ID        string
	Phone     string
	Code      string
	Attempts  int
	ExpiresAt time.Time
}
