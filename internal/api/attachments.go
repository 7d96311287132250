package api

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noteshare/internal/noteservice"
)

const (
	maxUploadBytes = 50 << 20 // 50 MB
	maxPages       = 50
)

// readPart loads one multipart file with its declared or sniffed content type.
func readPart(fh *multipart.FileHeader) (noteservice.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return noteservice.Image{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return noteservice.Image{}, err
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return noteservice.Image{Data: data, ContentType: ct}, nil
}

// Upload handles POST /notes (multipart/form-data). Fields: name, subject and
// either "pdf" with an optional "preview", or one or more "image" parts.
//
//	@Summary	Upload a note
//	@Tags		notes
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		name	formData	string	true	"Display name"
//	@Param		subject	formData	string	true	"Subject"
//	@Param		pdf		formData	file	false	"PDF document"
//	@Param		preview	formData	file	false	"Preview image for a PDF"
//	@Param		image	formData	file	false	"Scanned page (repeatable)"
//	@Success	201		{object}	NoteDetail
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	up := noteservice.Upload{
		OwnerID: UserID(r.Context()),
		Name:    r.FormValue("name"),
		Subject: r.FormValue("subject"),
	}
	files := r.MultipartForm.File

	if pdfs := files["pdf"]; len(pdfs) > 0 {
		doc, err := readPart(pdfs[0])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read 'pdf' part"))
			return
		}
		var preview *noteservice.Image
		if previews := files["preview"]; len(previews) > 0 {
			p, err := readPart(previews[0])
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody("failed to read 'preview' part"))
				return
			}
			preview = &p
		}
		note, err := h.notes.UploadPDF(r.Context(), up, doc.Data, preview)
		if err != nil {
			writeError(w, "upload pdf", err)
			return
		}
		writeJSON(w, http.StatusCreated, note)
		return
	}

	parts := files["image"]
	if len(parts) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'pdf' or 'image' field in multipart form"))
		return
	}
	if len(parts) > maxPages {
		writeJSON(w, http.StatusBadRequest, errorBody("too many pages"))
		return
	}
	images := make([]noteservice.Image, 0, len(parts))
	for _, fh := range parts {
		img, err := readPart(fh)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read 'image' part"))
			return
		}
		images = append(images, img)
	}
	note, err := h.notes.UploadImages(r.Context(), up, images)
	if err != nil {
		writeError(w, "upload images", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// Blob handles GET /notes/{id}/blob/{part}, where part is doc, preview or
// page-N.
func (h *Handler) Blob(w http.ResponseWriter, r *http.Request) {
	id, part := chi.URLParam(r, "id"), chi.URLParam(r, "part")
	rc, contentType, err := h.notes.OpenBlob(r.Context(), id, part)
	if err != nil {
		writeError(w, "open blob", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("blob copy interrupted", slog.String("id", id), slog.String("part", part), slog.String("error", err.Error()))
	}
}
