package noteservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/index"
	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/paging"
)

// ListingKind selects the data source behind a listing session.
type ListingKind string

const (
	ListingSubject ListingKind = "subject"
	ListingSearch  ListingKind = "search"
	ListingStarred ListingKind = "starred"
)

// Listing is the paging controller used for note listings.
type Listing = paging.Controller[index.NoteRow, models.NoteSummary]

// ListingSnapshot is the observable state of a listing session.
type ListingSnapshot = paging.Snapshot[models.NoteSummary]

// ListingInfo describes an open listing session.
type ListingInfo struct {
	ID        string          `json:"id"`
	Kind      ListingKind     `json:"kind"`
	Filter    string          `json:"filter,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Snapshot  ListingSnapshot `json:"snapshot"`
}

type listing struct {
	id        string
	kind      ListingKind
	userID    string
	createdAt time.Time
	lastUsed  time.Time
	ctrl      *Listing
	ctx       context.Context
	cancel    context.CancelFunc
}

func (l *listing) info() *ListingInfo {
	return &ListingInfo{
		ID:        l.id,
		Kind:      l.kind,
		Filter:    l.ctrl.Filter(),
		CreatedAt: l.createdAt,
		Snapshot:  l.ctrl.Snapshot(),
	}
}

func (l *listing) close() {
	l.cancel()
	l.ctrl.Close()
}

// SubjectSource pages the notes of one subject; the query filter is the subject.
func SubjectSource(db index.NoteStore) paging.Source[index.NoteRow] {
	return paging.SourceFunc[index.NoteRow](func(ctx context.Context, q paging.Query) paging.Result[index.NoteRow] {
		return paging.FromError[index.NoteRow](db.PageBySubject(ctx, q.Filter, q.After, paging.PageSize))
	})
}

// SearchSource pages free-text matches; the query filter is the search text.
func SearchSource(db index.NoteStore) paging.Source[index.NoteRow] {
	return paging.SourceFunc[index.NoteRow](func(ctx context.Context, q paging.Query) paging.Result[index.NoteRow] {
		return paging.FromError[index.NoteRow](db.PageSearch(ctx, q.Filter, q.After, paging.PageSize))
	})
}

// StarredSource pages the notes starred by userID.
func StarredSource(db index.NoteStore, userID string) paging.Source[index.NoteRow] {
	return paging.SourceFunc[index.NoteRow](func(ctx context.Context, q paging.Query) paging.Result[index.NoteRow] {
		return paging.FromError[index.NoteRow](db.PageStarred(ctx, userID, q.After, paging.PageSize))
	})
}

func (s *Service) source(kind ListingKind, filter, userID string) (paging.Source[index.NoteRow], error) {
	switch kind {
	case ListingSubject:
		if filter == "" {
			return nil, fmt.Errorf("%w: subject is required", apperr.ErrInvalid)
		}
		return SubjectSource(s.db), nil
	case ListingSearch:
		if filter == "" {
			return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalid)
		}
		return SearchSource(s.db), nil
	case ListingStarred:
		return StarredSource(s.db, userID), nil
	}
	return nil, fmt.Errorf("%w: unknown listing kind %q", apperr.ErrInvalid, kind)
}

// OpenListing creates a listing session owned by userID and starts loading
// its first page in the background. Progress is reported via the Notifier.
func (s *Service) OpenListing(kind ListingKind, filter, userID string) (*ListingInfo, error) {
	filter = strings.TrimSpace(filter)
	src, err := s.source(kind, filter, userID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(s.root)
	now := s.now().UTC()
	l := &listing{
		id:        newNoteID(),
		kind:      kind,
		userID:    userID,
		createdAt: now,
		lastUsed:  now,
		ctx:       ctx,
		cancel:    cancel,
		ctrl: paging.NewController[index.NoteRow, models.NoteSummary](src, index.Summary, filter,
			paging.WithEmptyDelay(s.emptyDelay),
			paging.WithLogger(s.logger)),
	}

	s.mu.Lock()
	if s.root.Err() != nil {
		s.mu.Unlock()
		cancel()
		return nil, paging.ErrClosed
	}
	s.evictOldestLocked(userID)
	s.listings[l.id] = l
	s.mu.Unlock()

	updates := l.ctrl.Subscribe()
	go func() {
		for snap := range updates {
			s.notifier.ListingChanged(l.userID, l.id, snap)
		}
	}()
	go func() {
		if _, err := l.ctrl.LoadFirst(ctx); err != nil {
			s.logger.Debug("listing first load ended", "listing", l.id, "error", err)
		}
	}()

	return l.info(), nil
}

func (s *Service) lookup(id, userID string) (*listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if l.userID != userID {
		return nil, apperr.ErrForbidden
	}
	l.lastUsed = s.now().UTC()
	return l, nil
}

// evictOldestLocked closes the least recently used sessions of userID until
// one more fits under the per-user limit. s.mu must be held.
func (s *Service) evictOldestLocked(userID string) {
	if s.maxListings <= 0 {
		return
	}
	for {
		var oldest *listing
		n := 0
		for _, l := range s.listings {
			if l.userID != userID {
				continue
			}
			n++
			if oldest == nil || l.lastUsed.Before(oldest.lastUsed) {
				oldest = l
			}
		}
		if n < s.maxListings {
			return
		}
		delete(s.listings, oldest.id)
		oldest.close()
		s.logger.Debug("listing evicted", "listing", oldest.id, "user", userID)
	}
}

// reapIdle closes sessions that have not been touched for the idle timeout.
// It returns the number of sessions closed.
func (s *Service) reapIdle() int {
	cutoff := s.now().UTC().Add(-s.idleTimeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, l := range s.listings {
		if l.lastUsed.After(cutoff) {
			continue
		}
		delete(s.listings, id)
		l.close()
		n++
	}
	if n > 0 {
		s.logger.Debug("idle listings closed", "count", n)
	}
	return n
}

func (s *Service) reapLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.root.Done():
			return
		case <-t.C:
			s.reapIdle()
		}
	}
}

// ListingState returns the current state of a listing session.
func (s *Service) ListingState(id, userID string) (*ListingInfo, error) {
	l, err := s.lookup(id, userID)
	if err != nil {
		return nil, err
	}
	return l.info(), nil
}

// ListingVisible reports the last visible row index of a session. It
// returns whether a next-page fetch was started.
func (s *Service) ListingVisible(id, userID string, lastIndex int) (bool, *ListingInfo, error) {
	l, err := s.lookup(id, userID)
	if err != nil {
		return false, nil, err
	}
	started := l.ctrl.OnVisible(l.ctx, lastIndex)
	return started, l.info(), nil
}

// RetryListing re-runs the failed load of a session and waits for it. The
// fetch is bound to the session rather than the caller.
func (s *Service) RetryListing(id, userID string) (*ListingInfo, error) {
	l, err := s.lookup(id, userID)
	if err != nil {
		return nil, err
	}
	if _, err := l.ctrl.Retry(l.ctx); err != nil && !errors.Is(err, paging.ErrInFlight) {
		return nil, err
	}
	return l.info(), nil
}

// CloseListing discards a listing session.
func (s *Service) CloseListing(id, userID string) error {
	l, err := s.lookup(id, userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.listings, id)
	s.mu.Unlock()
	l.close()
	return nil
}
