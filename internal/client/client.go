// Package client talks to the Noteshare HTTP API. Its listing sources plug
// into paging.Controller so the CLI pages through notes the same way the
// server-side listing sessions do.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/paging"
)

const defaultTimeout = 15 * time.Second

// NoteDTO is a note as it appears in API listing responses.
type NoteDTO struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Name       string `json:"name"`
	Subject    string `json:"subject"`
	Stars      int    `json:"stars"`
	PreviewRef string `json:"preview_ref,omitempty"`
}

// Summary translates a NoteDTO into the domain summary.
func Summary(d NoteDTO) models.NoteSummary {
	return models.NoteSummary{
		ID:         d.ID,
		OwnerID:    d.OwnerID,
		Name:       d.Name,
		Subject:    d.Subject,
		Stars:      d.Stars,
		PreviewRef: d.PreviewRef,
	}
}

type notePage struct {
	Notes      []NoteDTO `json:"notes"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Message)
}

// Client is a bearer-token API client.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the API mounted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SignIn exchanges email credentials for a token and keeps it for later calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", nil, body, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

// BrowseSubject fetches one page of notes in subject after the cursor.
func (c *Client) BrowseSubject(ctx context.Context, subject, after string) ([]NoteDTO, error) {
	return c.page(ctx, "/subjects/"+url.PathEscape(subject)+"/notes", url.Values{}, after)
}

// Search fetches one page of notes matching query after the cursor.
func (c *Client) Search(ctx context.Context, query, after string) ([]NoteDTO, error) {
	return c.page(ctx, "/search", url.Values{"q": {query}}, after)
}

// Starred fetches one page of the caller's starred notes after the cursor.
func (c *Client) Starred(ctx context.Context, after string) ([]NoteDTO, error) {
	return c.page(ctx, "/starred", url.Values{}, after)
}

// Subjects lists every subject with at least one note.
func (c *Client) Subjects(ctx context.Context) ([]string, error) {
	var out struct {
		Subjects []string `json:"subjects"`
	}
	if err := c.do(ctx, http.MethodGet, "/subjects", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Subjects, nil
}

// Star stars a note for the caller.
func (c *Client) Star(ctx context.Context, noteID string) error {
	return c.do(ctx, http.MethodPost, "/notes/"+url.PathEscape(noteID)+"/star", nil, nil, nil)
}

func (c *Client) page(ctx context.Context, path string, q url.Values, after string) ([]NoteDTO, error) {
	if after != "" {
		q.Set("after", after)
	}
	var out notePage
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var eb struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb) == nil {
			apiErr.Message = eb.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// SubjectSource pages through a subject; Query.Filter carries the subject.
func (c *Client) SubjectSource() paging.Source[NoteDTO] {
	return paging.SourceFunc[NoteDTO](func(ctx context.Context, q paging.Query) paging.Result[NoteDTO] {
		return paging.FromError[NoteDTO](c.BrowseSubject(ctx, q.Filter, q.After))
	})
}

// SearchSource pages through search results; Query.Filter carries the query.
func (c *Client) SearchSource() paging.Source[NoteDTO] {
	return paging.SourceFunc[NoteDTO](func(ctx context.Context, q paging.Query) paging.Result[NoteDTO] {
		return paging.FromError[NoteDTO](c.Search(ctx, q.Filter, q.After))
	})
}

// StarredSource pages through the caller's starred notes.
func (c *Client) StarredSource() paging.Source[NoteDTO] {
	return paging.SourceFunc[NoteDTO](func(ctx context.Context, q paging.Query) paging.Result[NoteDTO] {
		return paging.FromError[NoteDTO](c.Starred(ctx, q.After))
	})
}
