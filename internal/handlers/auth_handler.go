package handlers

import (
	"net/http"

	"github.com/prudhvinik1/weddingsync/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Logout handles POST /auth/logout. With ?all=true every session of the
// user is revoked.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		writeError(w, r, services.ErrUnauthorized)
		return
	}

	var err error
	if r.URL.Query().Get("all") == "true" {
		err = h.auth.LogoutAll(r.Context(), claims)
	} else {
		err = h.auth.Logout(r.Context(), claims)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
