package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notekeep/internal/models"
	"github.com/starford/notekeep/internal/notestore"
	"github.com/starford/notekeep/internal/richtext"
)

// Handler holds API route handlers.
type Handler struct {
	store  *notestore.Store
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(store *notestore.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// noteIndex parses the {index} URL parameter.
func noteIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("index must be a non-negative integer"))
		return 0, false
	}
	return i, true
}

func (h *Handler) lists() ListsResponse {
	return ListsResponse{
		Active:    listItems(h.store.ListActive()),
		Completed: listItems(h.store.ListCompleted()),
	}
}

func listItems(notes []models.Note) []NoteListItem {
	out := make([]NoteListItem, len(notes))
	for i, n := range notes {
		out[i] = NoteListItem{
			Index:     i,
			ID:        n.ID,
			Title:     n.Title,
			Preview:   richtext.Preview(n.Body, richtext.DefaultPreviewLimit),
			HasImage:  n.HasLegacyImage() || richtext.HasImages(n.Body),
			Completed: n.Completed,
			CreatedAt: n.CreatedAt,
		}
	}
	return out
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List active and completed notes
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	ListsResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.lists())
}

// GetNote returns the handler for GET /api/notes/{list}/{index}.
//
//	@Summary		Get a single note with its decoded body
//	@Tags			notes
//	@Produce		json
//	@Param			list	path		string	true	"List"	Enums(active, completed)
//	@Param			index	path		int		true	"Position in the list"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{list}/{index} [get]
func (h *Handler) GetNote(list models.List) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := noteIndex(w, r)
		if !ok {
			return
		}
		v, err := h.store.View(list, index)
		if err != nil {
			writeError(w, h.logger, "get note", err)
			return
		}
		writeJSON(w, http.StatusOK, detailOf(v))
	}
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note at the top of the active list
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DraftRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !readJSON(w, r, &req) {
		return
	}
	v, err := h.store.Create(req.draft())
	if err != nil {
		writeError(w, h.logger, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, detailOf(v))
}

// UpdateNote handles PUT /api/notes/active/{index}.
//
//	@Summary		Replace the title and body of an active note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			index	path		int				true	"Position in the active list"
//	@Param			body	body		DraftRequest	true	"New content"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/active/{index} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	index, ok := noteIndex(w, r)
	if !ok {
		return
	}
	var req DraftRequest
	if !readJSON(w, r, &req) {
		return
	}
	v, err := h.store.Edit(index, req.draft())
	if err != nil {
		writeError(w, h.logger, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, detailOf(v))
}

// InsertImage handles POST /api/notes/active/{index}/images.
//
//	@Summary		Embed an image into an active note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			index	path		int					true	"Position in the active list"
//	@Param			body	body		InsertImageRequest	true	"Image and text offset"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/active/{index}/images [post]
func (h *Handler) InsertImage(w http.ResponseWriter, r *http.Request) {
	index, ok := noteIndex(w, r)
	if !ok {
		return
	}
	var req InsertImageRequest
	if !readJSON(w, r, &req) {
		return
	}
	pos := -1
	if req.Position != nil {
		pos = *req.Position
	}
	v, err := h.store.InsertImage(index, pos, req.Payload)
	if err != nil {
		writeError(w, h.logger, "insert image", err)
		return
	}
	writeJSON(w, http.StatusOK, detailOf(v))
}

// CompleteNotes handles POST /api/notes/active/complete.
//
//	@Summary		Move active notes to the completed list
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IndicesRequest	true	"Active positions"
//	@Success		200		{object}	ListsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/active/complete [post]
func (h *Handler) CompleteNotes(w http.ResponseWriter, r *http.Request) {
	var req IndicesRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.store.CompleteMany(req.Indices); err != nil {
		writeError(w, h.logger, "complete notes", err)
		return
	}
	writeJSON(w, http.StatusOK, h.lists())
}

// DeleteNotes returns the handler for POST /api/notes/{list}/delete.
//
//	@Summary		Delete notes from a list
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			list	path		string			true	"List"	Enums(active, completed)
//	@Param			body	body		IndicesRequest	true	"Positions"
//	@Success		200		{object}	ListsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{list}/delete [post]
func (h *Handler) DeleteNotes(list models.List) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IndicesRequest
		if !readJSON(w, r, &req) {
			return
		}
		if err := h.store.Delete(list, req.Indices); err != nil {
			writeError(w, h.logger, "delete notes", err)
			return
		}
		writeJSON(w, http.StatusOK, h.lists())
	}
}

// ClearNotes handles DELETE /api/notes.
//
//	@Summary		Remove every note from both lists
//	@Tags			notes
//	@Success		204	"Store cleared"
//	@Security		BearerAuth
//	@Router			/notes [delete]
func (h *Handler) ClearNotes(w http.ResponseWriter, _ *http.Request) {
	if err := h.store.ClearAll(); err != nil {
		writeError(w, h.logger, "clear notes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Encode handles POST /api/richtext/encode.
//
//	@Summary		Encode text and images into note markup
//	@Tags			richtext
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EncodeRequest	true	"Text and images"
//	@Success		200		{object}	MarkupResponse
//	@Security		BearerAuth
//	@Router			/richtext/encode [post]
func (h *Handler) Encode(w http.ResponseWriter, r *http.Request) {
	var req EncodeRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, MarkupResponse{Markup: richtext.Encode(req.Text, req.Images)})
}

// Decode handles POST /api/richtext/decode.
//
//	@Summary		Decode note markup into text and images
//	@Tags			richtext
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DecodeRequest	true	"Markup"
//	@Success		200		{object}	DocumentResponse
//	@Security		BearerAuth
//	@Router			/richtext/decode [post]
func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, documentOf(richtext.Decode(req.Markup)))
}
