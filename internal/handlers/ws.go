package handlers

import (
	"net/http"
	"strings"

	"flightbooking/internal/auth"
)

// ServeRealtime upgrades to a websocket for balance, booking and message
// pushes. Browsers cannot set headers on the upgrade, so the token may come
// from the query string.
func (h *Handler) ServeRealtime(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	h.realtime.Serve(w, r, claims.UserID)
}
