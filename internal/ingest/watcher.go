// Package ingest watches an inbox directory and uploads the PDFs dropped
// into it as notes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/noteservice"
	"github.com/starford/noteshare/internal/parser"
)

// DoneDir is the inbox subdirectory processed files are moved into.
const DoneDir = ".done"

// settleDelay debounces the burst of write events a copy produces.
const settleDelay = 300 * time.Millisecond

// Uploader is the subset of the note service ingest needs.
type Uploader interface {
	UploadPDF(ctx context.Context, up noteservice.Upload, pdf []byte, preview *noteservice.Image) (*models.Note, error)
}

// Inbox uploads inbox documents on behalf of one owner.
type Inbox struct {
	dir     string
	ownerID string
	up      Uploader
	logger  *slog.Logger
}

// NewInbox creates an inbox rooted at dir.
func NewInbox(dir string, up Uploader, ownerID string, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{dir: dir, ownerID: ownerID, up: up, logger: logger}
}

// Watch processes the PDFs already in dir and then every PDF created or
// written below it until ctx is cancelled.
func Watch(ctx context.Context, dir string, up Uploader, ownerID string, logger *slog.Logger) error {
	return NewInbox(dir, up, ownerID, logger).Run(ctx)
}

// Run starts an fsnotify watcher on the inbox. New directories created at
// runtime are added to the watch list.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(in.dir, DoneDir), 0o755); err != nil {
		return fmt.Errorf("ingest: create done dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, in.dir); err != nil {
		return err
	}
	in.logger.Info("ingest: watching", slog.String("dir", in.dir))

	in.Scan(ctx)

	pending := make(map[string]struct{})
	var settle *time.Timer
	var settleCh <-chan time.Time
	schedule := func(path string) {
		pending[path] = struct{}{}
		if settle == nil {
			settle = time.NewTimer(settleDelay)
			settleCh = settle.C
		} else {
			settle.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			in.logger.Info("ingest: stopped")
			return nil

		case <-settleCh:
			for path := range pending {
				delete(pending, path)
				in.process(ctx, path)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if in.skipped(ev.Name) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						in.logger.Warn("ingest: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					in.scanDir(ctx, ev.Name)
					continue
				}
			}

			if isDocument(ev.Name) && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule(ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("ingest: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// Scan processes every document currently in the inbox.
func (in *Inbox) Scan(ctx context.Context) {
	in.scanDir(ctx, in.dir)
}

func (in *Inbox) scanDir(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.IsDir() {
			if p != in.dir && in.skipped(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if isDocument(p) {
			in.process(ctx, p)
		}
		return nil
	})
}

func (in *Inbox) process(ctx context.Context, path string) {
	note, err := in.Ingest(ctx, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Moved or removed before it settled.
	case err != nil:
		in.logger.Warn("ingest: upload failed", slog.String("path", path), slog.String("error", err.Error()))
	default:
		in.logger.Info("ingest: uploaded",
			slog.String("path", path),
			slog.String("id", note.ID),
			slog.String("subject", note.Subject))
	}
}

// Ingest uploads one document with its sidecar manifest and moves both into
// the done directory.
func (in *Inbox) Ingest(ctx context.Context, path string) (*models.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := parser.Manifest{}
	sidecar := parser.SidecarPath(path)
	if raw, readErr := os.ReadFile(sidecar); readErr == nil {
		parsed, parseErr := parser.Parse(raw)
		if parseErr != nil {
			return nil, parseErr
		}
		m = *parsed
	} else if !errors.Is(readErr, fs.ErrNotExist) {
		return nil, readErr
	} else {
		sidecar = ""
	}
	m.Merge(parser.Defaults(path, in.dir))

	note, err := in.up.UploadPDF(ctx, noteservice.Upload{
		OwnerID: in.ownerID,
		Name:    m.Name,
		Subject: m.Subject,
		Date:    m.Date,
	}, data, nil)
	if err != nil {
		return nil, err
	}

	if err := in.archive(path, note.ID); err != nil {
		in.logger.Warn("ingest: archive failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	if sidecar != "" {
		if err := in.archive(sidecar, note.ID); err != nil {
			in.logger.Warn("ingest: archive failed", slog.String("path", sidecar), slog.String("error", err.Error()))
		}
	}
	return note, nil
}

// archive moves path into the done directory, prefixed with the note ID so
// that equal file names from different subjects do not collide.
func (in *Inbox) archive(path, noteID string) error {
	dst := filepath.Join(in.dir, DoneDir, noteID+"-"+filepath.Base(path))
	return os.Rename(path, dst)
}

// skipped reports whether path lies in a hidden directory such as DoneDir.
func (in *Inbox) skipped(path string) bool {
	rel, err := filepath.Rel(in.dir, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

func isDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// addDirsRecursive walks root and adds every directory to the watcher,
// except hidden ones.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable dirs
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
