package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/caredesk/clinic-scheduling/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Kind: kind, Message: message})
}

// writeServiceError maps a scheduling error kind onto an HTTP status and
// preserves the typed shape. Untyped errors stay opaque 500s.
func writeServiceError(w http.ResponseWriter, err error) {
	var se *scheduling.Error
	if !errors.As(err, &se) {
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch se.Kind {
	case scheduling.KindValidation:
		status = http.StatusBadRequest
	case scheduling.KindNotFound:
		status = http.StatusNotFound
	case scheduling.KindAuthorization:
		status = http.StatusForbidden
	case scheduling.KindConflict, scheduling.KindInvalidTransition:
		status = http.StatusConflict
	case scheduling.KindOutOfWindow:
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, ErrorResponse{
		Kind:    string(se.Kind),
		Message: se.Message,
		Context: se.Context,
	})
}
