// Package storage defines the blob storage abstraction for note documents
// and preview images.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
)

// Provider stores opaque blobs under slash-separated keys.
type Provider interface {
	// Put writes r to key, replacing any existing blob.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Get opens the blob at key. A missing key yields apperr.ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// DocumentKey is the key of a note's PDF.
func DocumentKey(noteID string) string {
	return path.Join("notes", noteID, "doc.pdf")
}

// PageKey is the key of the n-th (1-based) scanned page of a note.
func PageKey(noteID string, n int, ext string) string {
	return path.Join("notes", noteID, fmt.Sprintf("page-%d%s", n, ext))
}

// PreviewKey is the key of a note's preview image.
func PreviewKey(noteID, ext string) string {
	return path.Join("notes", noteID, "preview"+ext)
}
