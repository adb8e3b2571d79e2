package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/notekeep/internal/imaging"
)

// DefaultMaxUploadBytes bounds image uploads.
const DefaultMaxUploadBytes = 20 << 20 // 20 MB

// ImageHandler turns uploaded pictures into embeddable payloads. Nothing is
// written to disk; the payload goes back to the client for use in a note.
type ImageHandler struct {
	enc      *imaging.Encoder
	maxBytes int64
	logger   *slog.Logger
}

// NewImageHandler creates an ImageHandler. maxBytes <= 0 selects
// DefaultMaxUploadBytes.
func NewImageHandler(enc *imaging.Encoder, maxBytes int64, logger *slog.Logger) *ImageHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ImageHandler{enc: enc, maxBytes: maxBytes, logger: logger}
}

// Upload handles POST /api/images (multipart/form-data, field "file").
//
//	@Summary		Downscale an image and return its base64 payload
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Success		200		{object}	ImagePayloadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images [post]
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	p, err := h.enc.Encode(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedImage) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorBody("unsupported image"))
			return
		}
		h.logger.Error("encode image failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, ImagePayloadResponse{
		Payload: p.Data,
		Width:   p.Width,
		Height:  p.Height,
	})
}
