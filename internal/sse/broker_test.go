package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/noteservice"
	"github.com/starford/noteshare/internal/paging"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestNoteChangedBroadcasts(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	anon := b.Subscribe("")
	user := b.Subscribe("u1")
	defer b.Unsubscribe(anon)
	defer b.Unsubscribe(user)

	b.NoteChanged(noteservice.EventCreated, "n1")

	for _, ch := range []chan []byte{anon, user} {
		select {
		case msg := <-ch:
			s := string(msg)
			if !strings.Contains(s, "event: note.created") {
				t.Errorf("missing event type in %q", s)
			}
			if !strings.Contains(s, `"id":"n1"`) {
				t.Errorf("missing data in %q", s)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestListingChangedTargetsOwner(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	owner := b.Subscribe("u1")
	other := b.Subscribe("u2")
	defer b.Unsubscribe(owner)
	defer b.Unsubscribe(other)

	snap := noteservice.ListingSnapshot{
		State: paging.Success,
		Items: []models.NoteSummary{{ID: "n1", Name: "Calculus"}},
	}
	b.ListingChanged("u1", "l1", snap)

	select {
	case msg := <-owner:
		s := string(msg)
		if !strings.Contains(s, "event: listing.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"listing":"l1"`) || !strings.Contains(s, `"state":"success"`) {
			t.Errorf("unexpected payload %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for owner message")
	}

	// Publishes are ordered through the loop; a broadcast after the
	// targeted event proves the other client skipped it.
	b.NoteChanged(noteservice.EventDeleted, "n2")
	select {
	case msg := <-other:
		if !strings.Contains(string(msg), "note.deleted") {
			t.Errorf("other user received %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	h := b.Handler(func(*http.Request) string { return "u1" })
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.NoteChanged(noteservice.EventStarred, "x")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.starred") {
		t.Errorf("handler output missing event: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandlerHeartbeat(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	b.Handler(func(*http.Request) string { return "" }).ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": ping") {
		t.Errorf("expected heartbeat comment, got %q", w.Body.String())
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe("u1")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.NoteChanged(noteservice.EventCreated, "x")
	b.ListingChanged("u1", "l1", noteservice.ListingSnapshot{})
}
