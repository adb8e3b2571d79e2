package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notekeep/internal/apperr"
)

const maxJSONBytes = 32 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error   string `json:"error" validate:"required"`
	Details any    `json:"details,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// readJSON decodes the request body into v and runs its validation rules.
// On failure it writes the response and returns false.
func readJSON(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: "validation failed", Details: verrs})
			return false
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return false
	}
	return true
}

// writeError maps store errors onto HTTP status codes.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrIndexOutOfRange):
		writeJSON(w, http.StatusBadRequest, errorBody("index out of range"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		logger.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
