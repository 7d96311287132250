package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted. Everything
// except /auth requires a bearer token. sseHandler, if non-nil, is mounted
// at GET /events inside the auth group.
func NewRouter(h *Handler, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/phone/send", h.SendCode)
		r.Post("/phone/confirm", h.ConfirmCode)
		r.Post("/signup", h.SignUp)
		r.Post("/signin", h.SignIn)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.auth))

		// Profile.
		r.Get("/me", h.Me)
		r.Put("/me", h.UpdateMe)
		r.Get("/me/interests", h.Interests)
		r.Put("/me/interests", h.SetInterests)
		r.Get("/me/notes", h.MyNotes)

		// Notes.
		r.Get("/notes", h.Recent)
		r.Post("/notes", h.Upload)
		r.Get("/notes/{id}", h.GetNote)
		r.Delete("/notes/{id}", h.DeleteNote)
		r.Get("/notes/{id}/blob/{part}", h.Blob)
		r.Post("/notes/{id}/star", h.Star)
		r.Delete("/notes/{id}/star", h.Unstar)

		// Cursor listings.
		r.Get("/subjects", h.Subjects)
		r.Get("/subjects/{subject}/notes", h.BrowseSubject)
		r.Get("/search", h.Search)
		r.Get("/starred", h.Starred)

		// Listing sessions.
		r.Post("/listings", h.OpenListing)
		r.Get("/listings/{id}", h.GetListing)
		r.Post("/listings/{id}/visible", h.ListingVisible)
		r.Post("/listings/{id}/retry", h.RetryListing)
		r.Delete("/listings/{id}", h.CloseListing)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
