// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Noteshare tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/noteservice"
)

// Server wraps the MCP server with Noteshare tools.
type Server struct {
	mcp     *server.MCPServer
	notes   *noteservice.Service
	ownerID string
}

// New creates a new MCP server with the read tools registered. When ownerID
// is non-empty the upload_note tool is registered too, uploading as that user.
func New(notes *noteservice.Service, ownerID string) *Server {
	s := &Server{notes: notes, ownerID: ownerID}

	s.mcp = server.NewMCPServer(
		"Noteshare",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_subjects",
		mcp.WithDescription("List every subject that has at least one shared note."),
	), s.listSubjects)

	s.mcp.AddTool(mcp.NewTool("browse_subject",
		mcp.WithDescription("Page through the notes of a subject, 10 at a time. "+
			"Pass next_cursor from the previous result as 'after' to get the next page."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject name (see list_subjects)")),
		mcp.WithString("after", mcp.Description("Cursor: last note ID of the previous page")),
	), s.browseSubject)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Free-text search over note names, subjects and recognized text, 10 results per page."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("after", mcp.Description("Cursor: last note ID of the previous page")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's metadata and its recognized text."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
	), s.readNote)

	if ownerID != "" {
		s.mcp.AddTool(mcp.NewTool("upload_note",
			mcp.WithDescription("Upload a PDF or a single page image from an http(s) URL or a base64 data URI. "+
				"Read noteshare://listing-format first for how notes are paged."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data>")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Display name of the note")),
			mcp.WithString("subject", mcp.Required(), mcp.Description("Subject the note belongs to")),
		), s.uploadNote)
	}

	s.mcp.AddResource(
		mcp.NewResource(listingFormatURI, "Listing Format",
			mcp.WithResourceDescription("How note listings are paged and what each field means."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readListingFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// UploadsEnabled reports whether upload_note is registered.
func (s *Server) UploadsEnabled() bool {
	return s.ownerID != ""
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	if noteservice.IsClientError(err) {
		return mcp.NewToolResultError(err.Error())
	}
	slog.Error("mcp: tool failed", slog.String("error", err.Error()))
	return mcp.NewToolResultError("internal error")
}

func optionalString(req mcp.CallToolRequest, name string) string {
	if v, err := req.RequireString(name); err == nil {
		return v
	}
	return ""
}

func (s *Server) listSubjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subjects, err := s.notes.Subjects(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"subjects": subjects}), nil
}

func (s *Server) browseSubject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject, err := req.RequireString("subject")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.notes.BrowseSubject(ctx, subject, optionalString(req, "after"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(page), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.notes.Search(ctx, query, optionalString(req, "after"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(page), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.GetNote(ctx, id, "")
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(note), nil
}

func (s *Server) readListingFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      listingFormatURI,
			MIMEType: "text/markdown",
			Text:     ListingFormat,
		},
	}, nil
}
