// Package handlers implements the HTTP handler layer exposed by
// internal/server: request decoding/validation and response shaping for the
// session, generation, iteration, node, health, and preference endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/orchestrator/internal/models"
)

var validate = validator.New()

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteDomainError maps a sentinel domain error to a status code and writes
// a standard error JSON response.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidState):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNoCapableNode):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, models.ErrMissingParameter), errors.Is(err, models.ErrUnsupportedAdapter):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrCorruptExport):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrTimeout), errors.Is(err, models.ErrRejectedByWorker), errors.Is(err, models.ErrTransportError):
		WriteError(w, http.StatusBadGateway, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeAndValidate decodes r's JSON body into dst and runs struct-tag
// validation over it.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
