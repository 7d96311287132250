package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/noteservice"
	"github.com/starford/noteshare/internal/ocr"
	"github.com/starford/noteshare/internal/testutil"
)

var pdfBytes = []byte("%PDF-1.4\nmcp test\n")

func testServer(t *testing.T, ownerID string) (*Server, *noteservice.Service) {
	t.Helper()
	db := testutil.TestDB(t)
	_, blobs := testutil.TestBlobs(t)
	svc := noteservice.NewService(db, blobs,
		noteservice.WithEmptyDelay(0),
		noteservice.WithRecognizer(ocr.Static("scanned words")))
	t.Cleanup(svc.Close)
	return New(svc, ownerID), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go does not expose a direct "call tool" test helper, so the
	// handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_subjects":
		result, err = srv.listSubjects(ctx, req)
	case "browse_subject":
		result, err = srv.browseSubject(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "upload_note":
		result, err = srv.uploadNote(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func seed(t *testing.T, svc *noteservice.Service, subject string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		up := noteservice.Upload{OwnerID: "u1", Name: fmt.Sprintf("%s %02d", subject, i), Subject: subject}
		if _, err := svc.UploadPDF(context.Background(), up, pdfBytes, nil); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListSubjects(t *testing.T) {
	srv, svc := testServer(t, "")
	seed(t, svc, "Physics", 1)
	seed(t, svc, "Art", 1)

	var out struct {
		Subjects []string `json:"subjects"`
	}
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "list_subjects", nil))), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Subjects) != 2 {
		t.Errorf("subjects = %v", out.Subjects)
	}
}

func TestBrowseSubjectPages(t *testing.T) {
	srv, svc := testServer(t, "")
	seed(t, svc, "Physics", 12)

	var first noteservice.Page
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "browse_subject", map[string]any{"subject": "Physics"}))), &first); err != nil {
		t.Fatal(err)
	}
	if len(first.Notes) != 10 || first.NextCursor == "" {
		t.Fatalf("first page = %d notes, cursor %q", len(first.Notes), first.NextCursor)
	}

	var second noteservice.Page
	r := callTool(t, srv, "browse_subject", map[string]any{"subject": "Physics", "after": first.NextCursor})
	if err := json.Unmarshal([]byte(resultText(r)), &second); err != nil {
		t.Fatal(err)
	}
	if len(second.Notes) != 2 || second.NextCursor != "" {
		t.Errorf("second page = %+v", second)
	}

	if r := callTool(t, srv, "browse_subject", map[string]any{}); !r.IsError {
		t.Error("expected error without subject")
	}
}

func TestSearchAndReadNote(t *testing.T) {
	srv, svc := testServer(t, "")
	seed(t, svc, "Chemistry", 3)

	var page noteservice.Page
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "search_notes", map[string]any{"query": "Chemistry"}))), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Notes) != 3 {
		t.Fatalf("search = %+v", page)
	}

	var note models.Note
	r := callTool(t, srv, "read_note", map[string]any{"id": page.Notes[0].ID})
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatal(err)
	}
	if note.ID != page.Notes[0].ID || note.Kind != models.KindPDF {
		t.Errorf("note = %+v", note)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t, "")
	r := callTool(t, srv, "read_note", map[string]any{"id": "nope"})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("expected not found error, got %q", resultText(r))
	}
}

func TestUploadNoteFromDataURI(t *testing.T) {
	srv, _ := testServer(t, "agent")
	uri := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes)

	r := callTool(t, srv, "upload_note", map[string]any{"url": uri, "name": "From agent", "subject": "Math"})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var note models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatal(err)
	}
	if note.OwnerID != "agent" || note.Subject != "Math" {
		t.Errorf("note = %+v", note)
	}
}

func TestUploadNoteImageRunsOCR(t *testing.T) {
	srv, _ := testServer(t, "agent")
	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16))
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	r := callTool(t, srv, "upload_note", map[string]any{"url": uri, "name": "Scan", "subject": "Math"})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var note models.Note
	_ = json.Unmarshal([]byte(resultText(r)), &note)
	if note.Kind != models.KindImages || note.Text != "scanned words" {
		t.Errorf("note = %+v", note)
	}
}

func TestUploadNoteRejectsUnsupported(t *testing.T) {
	srv, _ := testServer(t, "agent")
	uri := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("just text"))
	r := callTool(t, srv, "upload_note", map[string]any{"url": uri, "name": "x", "subject": "Math"})
	if !r.IsError {
		t.Error("expected error for plain text")
	}
}

func TestUploadNoteBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pdfBytes)
	}))
	defer ts.Close()

	srv, _ := testServer(t, "agent")
	r := callTool(t, srv, "upload_note", map[string]any{"url": ts.URL + "/doc.pdf", "name": "x", "subject": "Math"})
	if !r.IsError || !strings.Contains(resultText(r), "loopback") {
		t.Errorf("expected loopback block, got %q", resultText(r))
	}
}
