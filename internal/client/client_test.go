package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/paging"
)

// fakeAPI serves cursor pages over a fixed set of notes the way the real
// listing endpoints do.
func fakeAPI(t *testing.T, notes []NoteDTO) *httptest.Server {
	t.Helper()
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })

	pageAfter := func(filter func(NoteDTO) bool, after string) notePage {
		out := notePage{Notes: []NoteDTO{}}
		for _, n := range notes {
			if n.ID > after && filter(n) {
				out.Notes = append(out.Notes, n)
				if len(out.Notes) == paging.PageSize {
					out.NextCursor = n.ID
					break
				}
			}
		}
		return out
	}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Path != "/auth/signin" && req.Header.Get("Authorization") != "Bearer tok" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/auth/signin", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok"})
	})
	r.Get("/subjects", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"subjects": {"Physics"}})
	})
	r.Get("/subjects/{subject}/notes", func(w http.ResponseWriter, req *http.Request) {
		subject := chi.URLParam(req, "subject")
		writeJSON(w, http.StatusOK, pageAfter(func(n NoteDTO) bool { return n.Subject == subject }, req.URL.Query().Get("after")))
	})
	r.Get("/search", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("q") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
			return
		}
		writeJSON(w, http.StatusOK, pageAfter(func(NoteDTO) bool { return false }, ""))
	})
	r.Get("/starred", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	r.Post("/notes/{id}/star", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func physicsNotes(n int) []NoteDTO {
	out := make([]NoteDTO, n)
	for i := range out {
		out[i] = NoteDTO{ID: fmt.Sprintf("n%03d", i), Name: fmt.Sprintf("Lecture %d", i), Subject: "Physics"}
	}
	return out
}

func TestSignInStoresToken(t *testing.T) {
	ts := fakeAPI(t, nil)
	c := New(ts.URL, "")

	if _, err := c.Subjects(context.Background()); err == nil {
		t.Fatal("expected unauthorized before sign in")
	}
	if _, err := c.SignIn(context.Background(), "a@b.c", "wrong"); err == nil {
		t.Fatal("expected error for bad password")
	}
	tok, err := c.SignIn(context.Background(), "a@b.c", "secret")
	if err != nil || tok != "tok" {
		t.Fatalf("SignIn = %q, %v", tok, err)
	}
	subjects, err := c.Subjects(context.Background())
	if err != nil || len(subjects) != 1 {
		t.Fatalf("Subjects = %v, %v", subjects, err)
	}
}

func TestErrorCarriesStatusAndMessage(t *testing.T) {
	ts := fakeAPI(t, nil)
	c := New(ts.URL, "tok")

	_, err := c.Search(context.Background(), "", "")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "query is required" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestSubjectSourceDrivesController(t *testing.T) {
	ts := fakeAPI(t, physicsNotes(13))
	c := New(ts.URL+"/", "tok")

	ctrl := paging.NewController[NoteDTO, models.NoteSummary](c.SubjectSource(), Summary, "Physics", paging.WithEmptyDelay(0))
	defer ctrl.Close()

	snap, err := ctrl.LoadFirst(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != paging.Success || len(snap.Items) != 10 || snap.Cursor != "n009" {
		t.Fatalf("first = %s, %d items, cursor %q", snap.State, len(snap.Items), snap.Cursor)
	}

	snap, err = ctrl.LoadNext(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Items) != 13 || snap.Items[12].ID != "n012" {
		t.Fatalf("after next = %d items", len(snap.Items))
	}
	if ctrl.ShouldLoadNext(12) {
		t.Error("partial page should not trigger another load")
	}
}

func TestSearchSourceEmpty(t *testing.T) {
	ts := fakeAPI(t, physicsNotes(3))
	c := New(ts.URL, "tok")

	res := c.SearchSource().Query(context.Background(), paging.Query{Filter: "nothing"})
	if res.Kind != paging.ResultEmpty {
		t.Errorf("kind = %v, want empty", res.Kind)
	}
}

func TestStarredSourceFailure(t *testing.T) {
	ts := fakeAPI(t, nil)
	c := New(ts.URL, "tok")

	res := c.StarredSource().Query(context.Background(), paging.Query{})
	if res.Kind != paging.ResultError || res.Message == "" {
		t.Errorf("result = %+v, want error", res)
	}
}

func TestStar(t *testing.T) {
	ts := fakeAPI(t, nil)
	if err := New(ts.URL, "tok").Star(context.Background(), "n1"); err != nil {
		t.Fatal(err)
	}
}
