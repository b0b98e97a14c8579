package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/tradeanalytics/backend/src/logger"
)

// SendJSON writes an arbitrary payload with HTTP 200.
func SendJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

// SendFailure reports a logical failure with HTTP 200 and a body-level
// success flag. Most of the ledger/analytics/screenshot surface uses this
// contract; clients inspect the flag, not the status code.
func SendFailure(w http.ResponseWriter, message string) {
	SendJSON(w, map[string]interface{}{"success": false, "error": message})
}

// SendJSONError writes an error body with a real HTTP status code. Used by
// the auth/profile surface where the original API returned 4xx/5xx.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": message})
}

// SendAuthError writes an authentication failure carrying the client-side
// force-logout hint.
func SendAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": message, "logout": true})
}
