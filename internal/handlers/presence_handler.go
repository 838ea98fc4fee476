package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prudhvinik1/weddingsync/internal/models"
	"github.com/prudhvinik1/weddingsync/internal/services"
)

type PresenceHandler struct {
	presence *services.PresenceService
}

type presenceResponse struct {
	Success  bool              `json:"success"`
	Presence []models.Presence `json:"presence"`
	Count    int               `json:"count"`
}

func NewPresenceHandler(presence *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Heartbeat handles POST /sync/presence.
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req services.HeartbeatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, badRequest("body must be a JSON object"))
		return
	}

	if err := authorizeUser(r.Context(), req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := authorizeEvent(r.Context(), req.SharedEventID); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.presence.Heartbeat(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// List handles GET /sync/presence.
func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	sharedEventID := r.URL.Query().Get("sharedEventId")
	if err := authorizeEvent(r.Context(), sharedEventID); err != nil {
		writeError(w, r, err)
		return
	}

	presences, err := h.presence.List(r.Context(), sharedEventID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, presenceResponse{Success: true, Presence: presences, Count: len(presences)})
}
