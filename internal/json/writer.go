package json

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/dgellow/github-oauth-broker/internal/log"
)

// ContentType is the Content-Type of every JSON body the broker sends
const ContentType = "application/json; charset=utf-8"

// ErrorResponse represents a standard JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Encode marshals data without a trailing newline and without HTML escaping
func Encode(data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// WriteResponse writes a JSON response with the given status code
func WriteResponse(w http.ResponseWriter, statusCode int, data any) error {
	body, err := Encode(data)
	if err != nil {
		log.LogError("Failed to encode JSON response: %v", err)
		return err
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_, err = w.Write(body)
	return err
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	if err := WriteResponse(w, statusCode, ErrorResponse{Error: message}); err != nil {
		// Fallback to plain text error if JSON encoding fails
		http.Error(w, message, statusCode)
	}
}

func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}
