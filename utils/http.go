package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the wire shape of every error the relay returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteBadRequest writes a 400 Bad Request response
func WriteBadRequest(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message})
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "endpoint not found"
	}
	return WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: message})
}

// WriteInternalServerError writes a 500 Internal Server Error response with
// optional diagnostic details
func WriteInternalServerError(w http.ResponseWriter, message, details string) error {
	if message == "" {
		message = "internal server error"
	}
	return WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message, Details: details})
}
