// Package noteservice coordinates blob storage, OCR and the document store
// for note uploads, stars and listings.
package noteservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/checksum"
	"github.com/starford/noteshare/internal/index"
	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/ocr"
	"github.com/starford/noteshare/internal/paging"
	"github.com/starford/noteshare/internal/storage"
)

// Note event kinds passed to Notifier.NoteChanged.
const (
	EventCreated   = "created"
	EventDeleted   = "deleted"
	EventStarred   = "starred"
	EventUnstarred = "unstarred"
)

// Notifier receives change notifications. The SSE broker implements it.
type Notifier interface {
	NoteChanged(kind, noteID string)
	ListingChanged(userID, listingID string, snap ListingSnapshot)
}

type nopNotifier struct{}

func (nopNotifier) NoteChanged(string, string)                     {}
func (nopNotifier) ListingChanged(string, string, ListingSnapshot) {}

// Image is one uploaded image with its declared content type.
type Image struct {
	Data        []byte
	ContentType string
}

// Upload carries the metadata common to both upload kinds.
type Upload struct {
	OwnerID string
	Name    string
	Subject string
	// Date is the document's own date; zero means the upload time.
	Date time.Time
}

// Validate validates the upload metadata.
func (u *Upload) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.OwnerID, validation.Required),
		validation.Field(&u.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&u.Subject, validation.Required, validation.Length(1, 100)),
	)
}

var imageExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Service coordinates storage, OCR and index operations.
type Service struct {
	db         index.NoteStore
	blobs      storage.Provider
	recognizer ocr.Recognizer
	notifier   Notifier
	logger     *slog.Logger
	emptyDelay time.Duration

	idleTimeout time.Duration
	maxListings int
	now         func() time.Time

	root     context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	listings map[string]*listing
}

// Option configures a Service.
type Option func(*Service)

// WithRecognizer sets the OCR engine used for image uploads.
func WithRecognizer(r ocr.Recognizer) Option {
	return func(s *Service) {
		if r != nil {
			s.recognizer = r
		}
	}
}

// WithNotifier sets the change notification sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEmptyDelay sets the pause listing sessions apply to empty pages.
func WithEmptyDelay(d time.Duration) Option {
	return func(s *Service) { s.emptyDelay = d }
}

// WithListingIdleTimeout sets how long a listing session may go untouched
// before it is closed. Zero keeps sessions until CloseListing or Close.
func WithListingIdleTimeout(d time.Duration) Option {
	return func(s *Service) { s.idleTimeout = d }
}

// WithMaxListings caps the open listing sessions per user. Opening one more
// closes that user's least recently used session. Zero disables the cap.
func WithMaxListings(n int) Option {
	return func(s *Service) { s.maxListings = n }
}

// NewService creates a new note service.
func NewService(db index.NoteStore, blobs storage.Provider, opts ...Option) *Service {
	root, stop := context.WithCancel(context.Background())
	s := &Service{
		db:          db,
		blobs:       blobs,
		recognizer:  ocr.Static(""),
		notifier:    nopNotifier{},
		logger:      slog.Default(),
		emptyDelay:  paging.DefaultEmptyDelay,
		idleTimeout: DefaultListingIdleTimeout,
		maxListings: DefaultMaxListings,
		now:         time.Now,
		root:        root,
		stop:        stop,
		listings:    make(map[string]*listing),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idleTimeout > 0 {
		go s.reapLoop(reapInterval(s.idleTimeout))
	}
	return s
}

// Listing session limits applied unless overridden.
const (
	DefaultListingIdleTimeout = 30 * time.Minute
	DefaultMaxListings        = 16
)

func reapInterval(idle time.Duration) time.Duration {
	return min(max(idle/4, 10*time.Millisecond), time.Minute)
}

// Close cancels every open listing session.
func (s *Service) Close() {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.listings {
		l.close()
		delete(s.listings, id)
	}
}

// UploadPDF stores a PDF note with an optional preview image.
func (s *Service) UploadPDF(ctx context.Context, up Upload, pdf []byte, preview *Image) (*models.Note, error) {
	if err := up.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: document is not a PDF", apperr.ErrInvalid)
	}
	var previewExt string
	if preview != nil {
		ext, ok := imageExt[preview.ContentType]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported preview type %q", apperr.ErrInvalid, preview.ContentType)
		}
		previewExt = ext
	}

	id := newNoteID()
	row := index.NoteRow{
		ID:        id,
		OwnerID:   up.OwnerID,
		Name:      strings.TrimSpace(up.Name),
		Subject:   strings.TrimSpace(up.Subject),
		Kind:      models.KindPDF,
		Pages:     1,
		BlobRef:   storage.DocumentKey(id),
		Checksum:  checksum.Sum(pdf),
		CreatedAt: up.Date,
	}

	written := []string{row.BlobRef}
	if err := s.blobs.Put(ctx, row.BlobRef, bytes.NewReader(pdf), "application/pdf"); err != nil {
		return nil, err
	}
	if preview != nil {
		row.PreviewRef = storage.PreviewKey(id, previewExt)
		if err := s.blobs.Put(ctx, row.PreviewRef, bytes.NewReader(preview.Data), preview.ContentType); err != nil {
			s.removeBlobs(written)
			return nil, err
		}
		written = append(written, row.PreviewRef)
	}

	return s.insert(ctx, row, written)
}

// UploadImages stores a note made of scanned pages. Every page is OCR'd in
// order; the first page doubles as the preview.
func (s *Service) UploadImages(ctx context.Context, up Upload, images []Image) (*models.Note, error) {
	if err := up.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", apperr.ErrInvalid)
	}
	exts := make([]string, len(images))
	pages := make([][]byte, len(images))
	for i, img := range images {
		ext, ok := imageExt[img.ContentType]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported image type %q", apperr.ErrInvalid, img.ContentType)
		}
		if i > 0 && ext != exts[0] {
			return nil, fmt.Errorf("%w: all pages must share one image type", apperr.ErrInvalid)
		}
		exts[i] = ext
		pages[i] = img.Data
	}

	text, err := ocr.RecognizeAll(ctx, s.recognizer, pages)
	if err != nil {
		return nil, err
	}

	id := newNoteID()
	row := index.NoteRow{
		ID:        id,
		OwnerID:   up.OwnerID,
		Name:      strings.TrimSpace(up.Name),
		Subject:   strings.TrimSpace(up.Subject),
		Kind:      models.KindImages,
		Pages:     len(images),
		Text:      text,
		Checksum:  checksum.Pages(pages),
		CreatedAt: up.Date,
	}

	var written []string
	for i, img := range images {
		key := storage.PageKey(id, i+1, exts[i])
		if err := s.blobs.Put(ctx, key, bytes.NewReader(img.Data), img.ContentType); err != nil {
			s.removeBlobs(written)
			return nil, err
		}
		written = append(written, key)
	}
	row.BlobRef = written[0]
	row.PreviewRef = written[0]

	return s.insert(ctx, row, written)
}

func (s *Service) insert(ctx context.Context, row index.NoteRow, written []string) (*models.Note, error) {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.InsertNote(ctx, row); err != nil {
		s.removeBlobs(written)
		return nil, err
	}
	s.logger.Info("note uploaded",
		slog.String("id", row.ID),
		slog.String("owner", row.OwnerID),
		slog.String("subject", row.Subject),
		slog.String("kind", row.Kind))
	s.notifier.NoteChanged(EventCreated, row.ID)
	return toNote(row, false), nil
}

// GetNote returns a note with the viewer's star flag.
func (s *Service) GetNote(ctx context.Context, id, viewerID string) (*models.Note, error) {
	row, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	starred := false
	if viewerID != "" {
		if starred, err = s.db.IsStarred(ctx, viewerID, id); err != nil {
			return nil, err
		}
	}
	return toNote(*row, starred), nil
}

// DeleteNote removes a note owned by ownerID together with its blobs.
func (s *Service) DeleteNote(ctx context.Context, id, ownerID string) error {
	row, err := s.db.GetNote(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteNote(ctx, id, ownerID); err != nil {
		return err
	}
	s.removeBlobs(blobKeys(*row))
	s.notifier.NoteChanged(EventDeleted, id)
	return nil
}

// Star stars a note for userID and returns the updated note.
func (s *Service) Star(ctx context.Context, userID, noteID string) (*models.Note, error) {
	changed, err := s.db.Star(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notifier.NoteChanged(EventStarred, noteID)
	}
	return s.GetNote(ctx, noteID, userID)
}

// Unstar removes userID's star and returns the updated note.
func (s *Service) Unstar(ctx context.Context, userID, noteID string) (*models.Note, error) {
	changed, err := s.db.Unstar(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notifier.NoteChanged(EventUnstarred, noteID)
	}
	return s.GetNote(ctx, noteID, userID)
}

// Subjects lists every subject that has at least one note.
func (s *Service) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := s.db.Subjects(ctx)
	return nonNilSlice(subjects), err
}

// Page is one cursor page of summaries.
type Page struct {
	Notes      []models.NoteSummary `json:"notes"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// BrowseSubject returns the page of subject notes after the cursor.
func (s *Service) BrowseSubject(ctx context.Context, subject, after string) (*Page, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", apperr.ErrInvalid)
	}
	return toPage(s.db.PageBySubject(ctx, subject, after, paging.PageSize))
}

// Search returns the page of free-text matches after the cursor.
func (s *Service) Search(ctx context.Context, query, after string) (*Page, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalid)
	}
	return toPage(s.db.PageSearch(ctx, query, after, paging.PageSize))
}

// Starred returns the page of userID's starred notes after the cursor.
func (s *Service) Starred(ctx context.Context, userID, after string) (*Page, error) {
	return toPage(s.db.PageStarred(ctx, userID, after, paging.PageSize))
}

// Recent returns the page of all notes after the cursor, oldest first.
func (s *Service) Recent(ctx context.Context, after string) (*Page, error) {
	return toPage(s.db.PageAll(ctx, after, paging.PageSize))
}

// MyNotes returns the page of notes uploaded by ownerID after the cursor.
func (s *Service) MyNotes(ctx context.Context, ownerID, after string) (*Page, error) {
	return toPage(s.db.PageByOwner(ctx, ownerID, after, paging.PageSize))
}

// OpenBlob opens one part of a note: "doc", "preview" or "page-N".
func (s *Service) OpenBlob(ctx context.Context, noteID, part string) (io.ReadCloser, string, error) {
	row, err := s.db.GetNote(ctx, noteID)
	if err != nil {
		return nil, "", err
	}
	key, err := blobKeyForPart(*row, part)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return rc, contentTypeForKey(key), nil
}

func blobKeyForPart(row index.NoteRow, part string) (string, error) {
	switch {
	case part == "doc":
		return row.BlobRef, nil
	case part == "preview":
		if row.PreviewRef == "" {
			return "", apperr.ErrNotFound
		}
		return row.PreviewRef, nil
	case strings.HasPrefix(part, "page-") && row.Kind == models.KindImages:
		n, err := strconv.Atoi(strings.TrimPrefix(part, "page-"))
		if err != nil || n < 1 || n > row.Pages {
			return "", apperr.ErrNotFound
		}
		return storage.PageKey(row.ID, n, extOf(row.BlobRef)), nil
	}
	return "", apperr.ErrNotFound
}

func blobKeys(row index.NoteRow) []string {
	keys := []string{}
	if row.Kind == models.KindImages {
		for n := 1; n <= row.Pages; n++ {
			if k, err := blobKeyForPart(row, "page-"+strconv.Itoa(n)); err == nil {
				keys = append(keys, k)
			}
		}
		return keys
	}
	keys = append(keys, row.BlobRef)
	if row.PreviewRef != "" {
		keys = append(keys, row.PreviewRef)
	}
	return keys
}

func (s *Service) removeBlobs(keys []string) {
	for _, k := range keys {
		if err := s.blobs.Delete(context.Background(), k); err != nil {
			s.logger.Warn("blob cleanup failed", slog.String("key", k), slog.String("error", err.Error()))
		}
	}
}

func extOf(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i:]
	}
	return ""
}

func contentTypeForKey(key string) string {
	ext := extOf(key)
	if ext == ".pdf" {
		return "application/pdf"
	}
	for ct, e := range imageExt {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}

func toNote(r index.NoteRow, starred bool) *models.Note {
	return &models.Note{
		NoteSummary: index.Summary(r),
		Kind:        r.Kind,
		Pages:       r.Pages,
		Text:        r.Text,
		BlobRef:     r.BlobRef,
		Checksum:    r.Checksum,
		Starred:     starred,
		CreatedAt:   r.CreatedAt,
	}
}

func toPage(rows []index.NoteRow, err error) (*Page, error) {
	if err != nil {
		return nil, err
	}
	p := &Page{Notes: make([]models.NoteSummary, len(rows))}
	for i, r := range rows {
		p.Notes[i] = index.Summary(r)
	}
	if len(rows) == paging.PageSize {
		p.NextCursor = rows[len(rows)-1].ID
	}
	return p, nil
}

// newNoteID returns a time-ordered identifier so that id order is upload order.
func newNoteID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// IsClientError reports whether err should be surfaced to callers verbatim.
func IsClientError(err error) bool {
	return errors.Is(err, apperr.ErrInvalid) || errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrForbidden) || errors.Is(err, apperr.ErrConflict) ||
		errors.Is(err, apperr.ErrAlreadyExists)
}
