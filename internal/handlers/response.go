package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prudhvinik1/weddingsync/internal/logging"
	"github.com/prudhvinik1/weddingsync/internal/services"
	"github.com/prudhvinik1/weddingsync/internal/validation"
)

type errorResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.DefaultLogger().Warnf("failed to write response: %v", err)
	}
}

// writeError maps service errors to status codes. Storage details stay in
// the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *services.ValidationError
	var storageErr *services.StorageError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   validationErr.Message,
			Details: validationErr.Violations,
		})
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.As(err, &storageErr):
		logging.From(r.Context()).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to " + storageErr.Op})
	default:
		logging.From(r.Context()).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func badRequest(message string) error {
	return &services.ValidationError{Message: "invalid request: " + message}
}
