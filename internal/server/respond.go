package server

import (
	"encoding/json"
	"net/http"

	"pdf-editor/internal/logger"
)

// writeJSON encodes payload as the response body.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("failed to write JSON response", logger.Err(err))
	}
}

// writeError writes {"error": msg}, the shape the editor client reads.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
