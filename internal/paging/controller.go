// Package paging implements the incremental listing protocol shared by the
// browse, search and starred views: cursor-bounded pages of PageSize records
// appended to an ordered list, with the load state reported to observers.
package paging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultEmptyDelay is the pause applied before an empty outcome is reported.
const DefaultEmptyDelay = 3 * time.Second

var (
	// ErrInFlight is returned when a load is requested while another is running.
	ErrInFlight = errors.New("paging: fetch already in flight")
	// ErrNoCursor is returned by LoadNext when nothing has been loaded yet.
	ErrNoCursor = errors.New("paging: no cursor, list is empty")
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("paging: controller closed")
)

// Snapshot is a point-in-time copy of a controller's state.
type Snapshot[T any] struct {
	State     LoadState `json:"state"`
	Items     []T       `json:"items"`
	Cursor    string    `json:"cursor,omitempty"`
	Exhausted bool      `json:"exhausted"`
	InFlight  bool      `json:"in_flight"`
	Err       string    `json:"error,omitempty"`
}

type options struct {
	emptyDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Controller.
type Option func(*options)

// WithEmptyDelay overrides DefaultEmptyDelay. Zero disables the pause.
func WithEmptyDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.emptyDelay = d
		}
	}
}

// WithLogger sets the logger used for debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Controller owns one listing context: the accumulated items, the derived
// cursor and the load state. All methods are safe for concurrent use; at most
// one fetch runs at a time.
type Controller[R any, T Keyed] struct {
	src       Source[R]
	translate Translator[R, T]
	filter    string
	opts      options

	mu        sync.Mutex
	state     LoadState
	items     []T
	exhausted bool
	inFlight  bool
	lastErr   string
	closed    bool
	subs      map[chan Snapshot[T]]struct{}
}

// NewController returns a controller in the FirstLoad state with an empty list.
func NewController[R any, T Keyed](src Source[R], translate Translator[R, T], filter string, opts ...Option) *Controller[R, T] {
	o := options{
		emptyDelay: DefaultEmptyDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller[R, T]{
		src:       src,
		translate: translate,
		filter:    filter,
		opts:      o,
		state:     FirstLoad,
		subs:      make(map[chan Snapshot[T]]struct{}),
	}
}

// Filter returns the subject or search text this controller was built for.
func (c *Controller[R, T]) Filter() string { return c.filter }

// LoadFirst fetches the first page. It does not clear previously accumulated
// items; use Reset or a fresh controller for a new listing context.
func (c *Controller[R, T]) LoadFirst(ctx context.Context) (Snapshot[T], error) {
	c.mu.Lock()
	if err := c.beginLocked(FirstLoad); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	c.mu.Unlock()

	return c.fetch(ctx, Query{Filter: c.filter}, true)
}

// LoadNext fetches the page after the last accumulated item. Once the list is
// exhausted it returns the current snapshot without querying the source.
func (c *Controller[R, T]) LoadNext(ctx context.Context) (Snapshot[T], error) {
	c.mu.Lock()
	if len(c.items) == 0 {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrNoCursor
	}
	if c.exhausted && !c.closed {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	if err := c.beginLocked(NextLoad); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	cursor := c.cursorLocked()
	c.mu.Unlock()

	return c.fetch(ctx, Query{Filter: c.filter, After: cursor}, false)
}

// ShouldLoadNext reports whether a visible window ending at lastVisible has
// reached the tail of a full page, and no fetch is running.
func (c *Controller[R, T]) ShouldLoadNext(lastVisible int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shouldLoadNextLocked(lastVisible)
}

func (c *Controller[R, T]) shouldLoadNextLocked(lastVisible int) bool {
	n := len(c.items)
	if n == 0 || n%PageSize != 0 || lastVisible != n-1 {
		return false
	}
	if c.inFlight || c.exhausted || c.closed {
		return false
	}
	return c.state == Success || c.state == NextLoadError
}

// OnVisible is the presentation hook: when the trigger condition holds it
// starts the next-page fetch in the background and returns true. The result
// is delivered to subscribers.
func (c *Controller[R, T]) OnVisible(ctx context.Context, lastVisible int) bool {
	c.mu.Lock()
	if !c.shouldLoadNextLocked(lastVisible) {
		c.mu.Unlock()
		return false
	}
	if err := c.beginLocked(NextLoad); err != nil {
		c.mu.Unlock()
		return false
	}
	q := Query{Filter: c.filter, After: c.cursorLocked()}
	c.mu.Unlock()

	go func() {
		_, _ = c.fetch(ctx, q, false)
	}()
	return true
}

// Retry re-runs the operation that last failed. It is a no-op outside the
// error states.
func (c *Controller[R, T]) Retry(ctx context.Context) (Snapshot[T], error) {
	switch c.Snapshot().State {
	case FirstLoadError:
		return c.LoadFirst(ctx)
	case NextLoadError:
		return c.LoadNext(ctx)
	default:
		return c.Snapshot(), nil
	}
}

// Reset discards the accumulated list and returns to FirstLoad. It is for
// callers that keep one controller across listing contexts, such as a client
// switching subjects; sessions that open a controller per context never need it.
func (c *Controller[R, T]) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return ErrInFlight
	}
	c.items = nil
	c.state = FirstLoad
	c.exhausted = false
	c.lastErr = ""
	c.notifyLocked()
	return nil
}

// Cursor returns the identifier of the last accumulated item, or "".
func (c *Controller[R, T]) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursorLocked()
}

// State returns the current load state.
func (c *Controller[R, T]) State() LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the current state.
func (c *Controller[R, T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every change.
// Only the most recent snapshot is retained for a slow reader. The channel
// is closed by Unsubscribe or Close.
func (c *Controller[R, T]) Subscribe() <-chan Snapshot[T] {
	ch := make(chan Snapshot[T], 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch
	}
	c.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (c *Controller[R, T]) Unsubscribe(ch <-chan Snapshot[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sub := range c.subs {
		if sub == ch {
			delete(c.subs, sub)
			close(sub)
			return
		}
	}
}

// Close closes every subscriber channel. Later loads return ErrClosed.
func (c *Controller[R, T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for sub := range c.subs {
		close(sub)
	}
	clear(c.subs)
}

func (c *Controller[R, T]) beginLocked(state LoadState) error {
	if c.closed {
		return ErrClosed
	}
	if c.inFlight {
		return ErrInFlight
	}
	c.inFlight = true
	c.state = state
	c.lastErr = ""
	c.notifyLocked()
	return nil
}

func (c *Controller[R, T]) fetch(ctx context.Context, q Query, first bool) (Snapshot[T], error) {
	res := c.src.Query(ctx, q)

	var translated []T
	if res.Kind == ResultSuccess {
		translated = make([]T, len(res.Page))
		for i, rec := range res.Page {
			translated[i] = c.translate(rec)
		}
	}

	var waitErr error
	if res.Kind == ResultEmpty && c.opts.emptyDelay > 0 {
		waitErr = sleep(ctx, c.opts.emptyDelay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	failed := func(msg string) {
		c.lastErr = msg
		if first {
			c.state = FirstLoadError
		} else {
			c.state = NextLoadError
		}
	}

	switch {
	case waitErr != nil:
		failed(waitErr.Error())
	case res.Kind == ResultError:
		failed(res.Message)
		c.opts.logger.Debug("paging: fetch failed",
			slog.String("filter", q.Filter),
			slog.String("after", q.After),
			slog.String("error", res.Message))
	case res.Kind == ResultEmpty:
		c.state = Success
		c.exhausted = true
	default:
		c.items = append(c.items, translated...)
		c.state = Success
		c.exhausted = len(translated) < PageSize
		c.opts.logger.Debug("paging: page loaded",
			slog.String("filter", q.Filter),
			slog.String("after", q.After),
			slog.Int("count", len(translated)),
			slog.Int("total", len(c.items)))
	}

	c.notifyLocked()
	snap := c.snapshotLocked()
	if waitErr != nil {
		return snap, waitErr
	}
	return snap, nil
}

func (c *Controller[R, T]) cursorLocked() string {
	if len(c.items) == 0 {
		return ""
	}
	return c.items[len(c.items)-1].Key()
}

func (c *Controller[R, T]) snapshotLocked() Snapshot[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T]{
		State:     c.state,
		Items:     items,
		Cursor:    c.cursorLocked(),
		Exhausted: c.exhausted,
		InFlight:  c.inFlight,
		Err:       c.lastErr,
	}
}

// notifyLocked hands the current snapshot to every subscriber, replacing any
// snapshot the subscriber has not read yet.
func (c *Controller[R, T]) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for sub := range c.subs {
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- snap:
		default:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
