package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/larsks/carcontrol/internal/store"
)

// APIResponse is the envelope for status and error replies.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, httpCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, httpCode int) {
	s.sendJSON(w, APIResponse{Status: "error", Message: message}, httpCode)
}

// errorStatus maps a store error to an HTTP status and a short code
// shared with the websocket error replies.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrShutdown):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, store.ErrHardwareFault):
		return http.StatusInternalServerError, "hardware_fault"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	httpCode, _ := errorStatus(err)
	s.sendError(w, err.Error(), httpCode)
}
