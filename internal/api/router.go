package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notekeep/internal/models"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, ih *ImageHandler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Lists.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Delete("/notes", h.ClearNotes)

	// Active notes.
	r.Get("/notes/active/{index}", h.GetNote(models.ListActive))
	r.Put("/notes/active/{index}", h.UpdateNote)
	r.Post("/notes/active/{index}/images", h.InsertImage)
	r.Post("/notes/active/complete", h.CompleteNotes)
	r.Post("/notes/active/delete", h.DeleteNotes(models.ListActive))

	// Completed notes.
	r.Get("/notes/completed/{index}", h.GetNote(models.ListCompleted))
	r.Post("/notes/completed/delete", h.DeleteNotes(models.ListCompleted))

	// Markup helpers.
	r.Post("/richtext/encode", h.Encode)
	r.Post("/richtext/decode", h.Decode)

	// Image payloads.
	if ih != nil {
		r.Post("/images", ih.Upload)
	}

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
