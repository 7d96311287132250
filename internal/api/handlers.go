package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noteshare/internal/auth"
	"github.com/starford/noteshare/internal/index"
	"github.com/starford/noteshare/internal/noteservice"
	"github.com/starford/noteshare/internal/prefs"
)

// Handler holds API route handlers.
type Handler struct {
	notes *noteservice.Service
	auth  *auth.Service
	users index.UserStore
	prefs *prefs.Store
}

// NewHandler creates a new Handler.
func NewHandler(notes *noteservice.Service, authSvc *auth.Service, users index.UserStore, p *prefs.Store) *Handler {
	return &Handler{notes: notes, auth: authSvc, users: users, prefs: p}
}

// SendCode handles POST /auth/phone/send.
//
//	@Summary	Send a sign-in code to a phone number
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		SendCodeRequest	true	"Phone number (E.164)"
//	@Success	200		{object}	SendCodeResponse
//	@Failure	400		{object}	errResponse
//	@Router		/auth/phone/send [post]
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.auth.SendCode(r.Context(), req.Phone)
	if err != nil {
		writeError(w, "send code", err)
		return
	}
	writeJSON(w, http.StatusOK, SendCodeResponse{VerificationID: id})
}

// ConfirmCode handles POST /auth/phone/confirm.
//
//	@Summary	Exchange a phone code for a session
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		ConfirmCodeRequest	true	"Verification"
//	@Success	200		{object}	auth.Session
//	@Failure	401		{object}	errResponse
//	@Router		/auth/phone/confirm [post]
func (h *Handler) ConfirmCode(w http.ResponseWriter, r *http.Request) {
	var req ConfirmCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.ConfirmCode(r.Context(), req.VerificationID, req.Code)
	if err != nil {
		writeError(w, "confirm code", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// SignUp handles POST /auth/signup.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, "sign up", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// SignIn handles POST /auth/signin.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, "sign in", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.UserByID(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateMe handles PUT /me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	if err := h.users.UpdateProfile(ctx, UserID(ctx), req.Name, req.College); err != nil {
		writeError(w, "update profile", err)
		return
	}
	h.Me(w, r)
}

// Interests handles GET /me/interests.
func (h *Handler) Interests(w http.ResponseWriter, r *http.Request) {
	tags, err := h.prefs.Interests(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, "get interests", err)
		return
	}
	writeJSON(w, http.StatusOK, InterestsBody{Interests: tags})
}

// SetInterests handles PUT /me/interests.
func (h *Handler) SetInterests(w http.ResponseWriter, r *http.Request) {
	var req InterestsBody
	if !decodeJSON(w, r, &req) {
		return
	}
	tags, err := h.prefs.SetInterests(r.Context(), UserID(r.Context()), req.Interests)
	if err != nil {
		writeError(w, "set interests", err)
		return
	}
	writeJSON(w, http.StatusOK, InterestsBody{Interests: tags})
}

// MyNotes handles GET /me/notes?after=.
func (h *Handler) MyNotes(w http.ResponseWriter, r *http.Request) {
	page, err := h.notes.MyNotes(r.Context(), UserID(r.Context()), r.URL.Query().Get("after"))
	writePage(w, "my notes", page, err)
}

// GetNote handles GET /notes/{id}.
//
//	@Summary	Get a single note
//	@Tags		notes
//	@Produce	json
//	@Param		id	path		string	true	"Note ID"
//	@Success	200	{object}	NoteDetail
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.GetNote(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/{id}. Only the owner may delete.
//
//	@Summary	Delete a note
//	@Tags		notes
//	@Param		id	path	string	true	"Note ID"
//	@Success	204	"Note deleted"
//	@Failure	403	{object}	errResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.DeleteNote(r.Context(), chi.URLParam(r, "id"), UserID(r.Context())); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Star handles POST /notes/{id}/star.
func (h *Handler) Star(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Star(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "star note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Unstar handles DELETE /notes/{id}/star.
func (h *Handler) Unstar(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Unstar(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "unstar note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Subjects handles GET /subjects.
func (h *Handler) Subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.notes.Subjects(r.Context())
	if err != nil {
		writeError(w, "list subjects", err)
		return
	}
	writeJSON(w, http.StatusOK, SubjectsResponse{Subjects: subjects})
}

// BrowseSubject handles GET /subjects/{subject}/notes?after=.
//
//	@Summary	Page through the notes of a subject
//	@Tags		listings
//	@Produce	json
//	@Param		subject	path		string	true	"Subject"
//	@Param		after	query		string	false	"Cursor: last note ID of the previous page"
//	@Success	200		{object}	NotePage
//	@Security	BearerAuth
//	@Router		/subjects/{subject}/notes [get]
func (h *Handler) BrowseSubject(w http.ResponseWriter, r *http.Request) {
	page, err := h.notes.BrowseSubject(r.Context(), chi.URLParam(r, "subject"), r.URL.Query().Get("after"))
	writePage(w, "browse subject", page, err)
}

// Search handles GET /search?q=&after=.
//
//	@Summary	Free-text search across note names, subjects and OCR text
//	@Tags		listings
//	@Produce	json
//	@Param		q		query		string	true	"Search query"
//	@Param		after	query		string	false	"Cursor"
//	@Success	200		{object}	NotePage
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.notes.Search(r.Context(), q.Get("q"), q.Get("after"))
	writePage(w, "search", page, err)
}

// Recent handles GET /notes?after=.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	page, err := h.notes.Recent(r.Context(), r.URL.Query().Get("after"))
	writePage(w, "recent", page, err)
}

// Starred handles GET /starred?after=.
func (h *Handler) Starred(w http.ResponseWriter, r *http.Request) {
	page, err := h.notes.Starred(r.Context(), UserID(r.Context()), r.URL.Query().Get("after"))
	writePage(w, "starred", page, err)
}

func writePage(w http.ResponseWriter, op string, page *NotePage, err error) {
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// OpenListing handles POST /listings.
func (h *Handler) OpenListing(w http.ResponseWriter, r *http.Request) {
	var req OpenListingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	info, err := h.notes.OpenListing(req.Kind, req.Filter, UserID(r.Context()))
	if err != nil {
		writeError(w, "open listing", err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// GetListing handles GET /listings/{id}.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	info, err := h.notes.ListingState(chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeError(w, "get listing", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ListingVisible handles POST /listings/{id}/visible.
func (h *Handler) ListingVisible(w http.ResponseWriter, r *http.Request) {
	var req VisibleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	started, info, err := h.notes.ListingVisible(chi.URLParam(r, "id"), UserID(r.Context()), *req.LastIndex)
	if err != nil {
		writeError(w, "listing visible", err)
		return
	}
	writeJSON(w, http.StatusOK, VisibleResponse{Started: started, Listing: info})
}

// RetryListing handles POST /listings/{id}/retry.
func (h *Handler) RetryListing(w http.ResponseWriter, r *http.Request) {
	info, err := h.notes.RetryListing(chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeError(w, "retry listing", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// CloseListing handles DELETE /listings/{id}.
func (h *Handler) CloseListing(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.CloseListing(chi.URLParam(r, "id"), UserID(r.Context())); err != nil {
		writeError(w, "close listing", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
