package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prudhvinik1/weddingsync/internal/models"
	"github.com/prudhvinik1/weddingsync/internal/services"
)

const maxBodyBytes = 1 << 20

// maxWaitSeconds is the largest whole-second wait that fits a time.Duration.
const maxWaitSeconds = math.MaxInt64 / int64(time.Second)

type SyncHandler struct {
	ledger *services.LedgerService
}

type storeUpdateResponse struct {
	Success  bool   `json:"success"`
	UpdateID string `json:"updateId"`
}

type updatesResponse struct {
	Success bool                 `json:"success"`
	Updates []*models.SyncUpdate `json:"updates"`
	Count   int                  `json:"count"`
}

func NewSyncHandler(ledger *services.LedgerService) *SyncHandler {
	return &SyncHandler{ledger: ledger}
}

// StoreUpdate handles POST /sync/store-update.
func (h *SyncHandler) StoreUpdate(w http.ResponseWriter, r *http.Request) {
	var req services.SubmitRequest
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

	updateID, err := h.ledger.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, storeUpdateResponse{Success: true, UpdateID: updateID})
}

// CheckUpdates handles GET /sync/check-updates. Returned updates are marked
// processed.
func (h *SyncHandler) CheckUpdates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := services.DrainRequest{
		SharedEventID: query.Get("sharedEventId"),
		ExcludeUserID: query.Get("userId"),
	}

	if err := authorizeEvent(r.Context(), req.SharedEventID); err != nil {
		writeError(w, r, err)
		return
	}
	if claims := claimsFrom(r.Context()); claims != nil && req.ExcludeUserID == "" {
		req.ExcludeUserID = claims.UserID
	}

	if value := query.Get("since"); value != "" {
		since, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			writeError(w, r, badRequest("since must be an integer"))
			return
		}
		req.Since = &since
	}
	if value := query.Get("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil {
			writeError(w, r, badRequest("limit must be an integer"))
			return
		}
		req.Limit = limit
	}
	if value := query.Get("wait"); value != "" {
		wait, err := parseWait(value)
		if err != nil {
			writeError(w, r, badRequest("wait must be a duration such as 20s"))
			return
		}
		req.Wait = wait
	}

	updates, err := h.ledger.Drain(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updatesResponse{Success: true, Updates: updates, Count: len(updates)})
}

// ListUpdates handles GET /sync/updates without marking anything processed.
func (h *SyncHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sharedEventID := query.Get("sharedEventId")

	if err := authorizeEvent(r.Context(), sharedEventID); err != nil {
		writeError(w, r, err)
		return
	}

	includeProcessed := false
	if value := query.Get("includeProcessed"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			writeError(w, r, badRequest("includeProcessed must be a boolean"))
			return
		}
		includeProcessed = parsed
	}

	updates, err := h.ledger.Peek(r.Context(), sharedEventID, includeProcessed)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updatesResponse{Success: true, Updates: updates, Count: len(updates)})
}

// parseWait accepts a Go duration or a whole number of seconds.
func parseWait(value string) (time.Duration, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 || seconds > maxWaitSeconds {
			return 0, fmt.Errorf("wait %d seconds out of range", seconds)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(value)
}
