package handlers

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeMessage emits the {message} error body used by auth failures.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeErrors emits the {errors: [...]} body used by validation failures.
func writeErrors(w http.ResponseWriter, status int, errs ...string) {
	writeJSON(w, status, map[string][]string{"errors": errs})
}

// writeError emits the generic {error} body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
