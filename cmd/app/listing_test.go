package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/starford/noteshare/internal/client"
	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/paging"
)

func fakeSource(n int, failOnce string) paging.Source[client.NoteDTO] {
	notes := make([]client.NoteDTO, n)
	for i := range notes {
		notes[i] = client.NoteDTO{ID: fmt.Sprintf("n%03d", i), Name: fmt.Sprintf("Note %d", i), Subject: "Art"}
	}
	failed := false
	return paging.SourceFunc[client.NoteDTO](func(_ context.Context, q paging.Query) paging.Result[client.NoteDTO] {
		if q.After == failOnce && !failed {
			failed = true
			return paging.Failure[client.NoteDTO]("temporarily unavailable")
		}
		var page []client.NoteDTO
		for _, n := range notes {
			if n.ID > q.After && len(page) < paging.PageSize {
				page = append(page, n)
			}
		}
		return paging.PageOf(page)
	})
}

func runPage(t *testing.T, src paging.Source[client.NoteDTO], input string) string {
	t.Helper()
	ctrl := paging.NewController[client.NoteDTO, models.NoteSummary](src, client.Summary, "Art", paging.WithEmptyDelay(0))
	defer ctrl.Close()

	var out bytes.Buffer
	if err := page(context.Background(), ctrl, strings.NewReader(input), &out); err != nil {
		t.Fatalf("page: %v", err)
	}
	return out.String()
}

func TestPageLoadsOnEnter(t *testing.T) {
	out := runPage(t, fakeSource(13, "-"), "\n")
	if !strings.Contains(out, "Note 12") || !strings.Contains(out, "end of list, 13 notes") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Count(out, "n000") != 1 {
		t.Errorf("first page printed twice:\n%s", out)
	}
}

func TestPageQuit(t *testing.T) {
	out := runPage(t, fakeSource(25, "-"), "q\n")
	if strings.Contains(out, "Note 10") {
		t.Errorf("second page loaded after quit:\n%s", out)
	}
}

func TestPageRetriesFailedLoad(t *testing.T) {
	out := runPage(t, fakeSource(12, "n009"), "\n\n")
	if !strings.Contains(out, "load failed: temporarily unavailable") {
		t.Fatalf("missing failure:\n%s", out)
	}
	if !strings.Contains(out, "end of list, 12 notes") {
		t.Errorf("retry did not complete the list:\n%s", out)
	}
}

func TestPageEmpty(t *testing.T) {
	out := runPage(t, fakeSource(0, "-"), "")
	if !strings.Contains(out, "no notes") {
		t.Errorf("output:\n%s", out)
	}
}
