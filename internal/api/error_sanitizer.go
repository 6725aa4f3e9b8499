package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// =============================================================================
// RESPONSE HELPERS + ERROR SANITIZER
// Internal errors (database details, file paths) are never leaked to API
// consumers. 5xx responses carry generic messages while the full error is
// logged server-side.
// =============================================================================

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondSafeError logs the internal error and sends a sanitized JSON error
// response to the client. Use this whenever a 500-level error would otherwise
// include err.Error() in the response.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	if internalErr != nil {
		log.Printf("ERROR [%d]: %s: %v", code, publicMsg, internalErr)
	}
	respondError(w, code, publicMsg)
}
