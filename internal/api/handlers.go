package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/larsks/carcontrol/internal/store"
)

type toggleResponse struct {
	SwitchID string `json:"switchId"`
	State    bool   `json:"state"`
	Name     string `json:"name"`
}

type switchResponse struct {
	store.SwitchState
	Changed bool `json:"changed"`
	// AutoOff is the number of seconds until the switch turns itself off.
	AutoOff int `json:"autoOff,omitempty"`
}

type allOffResponse struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Changes []store.ChangeEvent `json:"changes"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Driver    string `json:"driver"`
	Switches  int    `json:"switches"`
	Observers int    `json:"observers"`
}

func (s *Server) listSwitchesHandler(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.store.Snapshot(), http.StatusOK)
}

func (s *Server) switchStatusHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, st, http.StatusOK)
}

func (s *Server) toggleHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ev, err := s.control.Toggle(id)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	// Toggle only succeeds for known ids.
	st, _ := s.store.Get(id)
	s.sendJSON(w, toggleResponse{
		SwitchID: ev.SwitchID,
		State:    ev.Level,
		Name:     st.Name,
	}, http.StatusOK)
}

func (s *Server) switchHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := r.Context().Value(switchRequestKey).(switchRequest)
	if !ok {
		s.sendError(w, "missing switch request", http.StatusInternalServerError)
		return
	}

	var (
		changed = true
		err     error
	)
	switch req.State {
	case switchStateToggle:
		_, err = s.control.Toggle(id)
	case switchStateOn:
		_, changed, err = s.control.Set(id, true, req.DurationValue())
	case switchStateOff:
		_, changed, err = s.control.Set(id, false, 0)
	}
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	st, err := s.store.Get(id)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	resp := switchResponse{SwitchState: st, Changed: changed}
	if req.Duration != nil {
		resp.AutoOff = *req.Duration
	}
	s.sendJSON(w, resp, http.StatusOK)
}

func (s *Server) allOffHandler(w http.ResponseWriter, r *http.Request) {
	changes, err := s.control.AllOff()
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	s.sendJSON(w, allOffResponse{
		Status:  "ok",
		Message: "All switches turned off",
		Changes: changes,
	}, http.StatusOK)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, healthResponse{
		Status:    "ok",
		Driver:    s.driverName,
		Switches:  s.store.Len(),
		Observers: s.broadcaster.Len(),
	}, http.StatusOK)
}
