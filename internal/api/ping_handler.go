// File: backend/internal/api/ping_handler.go
package api

import (
	"net/http"
	"time"
)

// PingHandler is the unauthenticated liveness check used by deploy
// scripts and the frontend's connectivity probe.
func (h *APIHandler) PingHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":   "pong",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
