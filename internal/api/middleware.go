package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"time"
)

type (
	contextKey string
)

const switchRequestKey contextKey = "switchRequest"

const (
	switchStateOn     = "on"
	switchStateOff    = "off"
	switchStateToggle = "toggle"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 4096

// maxDuration is the longest auto-off delay, in seconds, a request may ask for.
const maxDuration = 24 * 60 * 60

type switchRequest struct {
	State    string `json:"state"`
	Duration *int   `json:"duration,omitempty"`
}

// DurationValue returns the requested auto-off delay, or zero.
func (r switchRequest) DurationValue() time.Duration {
	if r.Duration == nil {
		return 0
	}
	return time.Duration(*r.Duration) * time.Second
}

// validateJSONRequest rejects bodies that are declared as something other than JSON.
func (s *Server) validateJSONRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType := r.Header.Get("Content-Type"); contentType != "" {
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				s.sendError(w, ErrContentType.Error(), http.StatusBadRequest)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// validateSwitchRequest parses and validates the switch request JSON body.
func (s *Server) validateSwitchRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req switchRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, ErrInvalidJSON.Error(), http.StatusBadRequest)
			return
		}

		if err := req.validate(); err != nil {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), switchRequestKey, req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (r switchRequest) validate() error {
	switch r.State {
	case switchStateOn, switchStateOff, switchStateToggle:
	default:
		return fmt.Errorf("%w, got %q", ErrInvalidState, r.State)
	}

	if r.Duration != nil {
		if *r.Duration <= 0 {
			return ErrInvalidDuration
		}
		if *r.Duration > maxDuration {
			return ErrDurationTooLong
		}
		if r.State != switchStateOn {
			return ErrDurationState
		}
	}
	return nil
}
