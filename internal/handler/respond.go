package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
)

// OpenAI-style error types.
const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeNotFound       = "not_found_error"
	errTypeServer         = "server_error"
)

const maxRequestBodySize = 10 * 1024 * 1024 // 10 MB

func closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		log.Printf("failed to close body: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message, errorType string) {
	writeJSON(w, statusCode, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errorType,
		},
	})
}

// readBody reads at most maxRequestBodySize bytes. It writes the error
// response itself and returns ok=false on failure.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer closeBody(r.Body)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", errTypeInvalidRequest)
		return nil, false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", errTypeInvalidRequest)
		return nil, false
	}
	return body, true
}
