package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/b0bbywan/go-odio-powerd/backend"
	"github.com/b0bbywan/go-odio-powerd/events"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

var errInvalidConfirm = errors.New("confirm must be true or false")

type PowerStatus struct {
	State        string                `json:"state"`
	Request      *RequestData          `json:"request,omitempty"`
	Pending      *PendingData          `json:"pending,omitempty"`
	Capabilities *backend.Capabilities `json:"capabilities,omitempty"`
}

type RequestData struct {
	Mode   string `json:"mode"`
	Reason string `json:"reason,omitempty"`
}

type TriggerResponse struct {
	Result string `json:"result"`
	Mode   string `json:"mode"`
}

type rebootRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) powerStatus(w http.ResponseWriter, r *http.Request) (any, error) {
	status := PowerStatus{State: s.coordinator.State().String()}
	if req, ok := s.coordinator.ActiveRequest(); ok {
		status.Request = &RequestData{Mode: req.Mode.String(), Reason: req.Reason}
	}
	if s.confirmer != nil {
		if p, ok := s.confirmer.Pending(); ok {
			status.Pending = &p
		}
	}
	if s.power != nil {
		caps := s.power.Capabilities()
		status.Capabilities = &caps
	}
	return status, nil
}

// stateEvent describes the pipeline as it is now, in the shape of the
// power.state events the observer emits.
func (s *Server) stateEvent() events.Event {
	data := backend.StateData{State: s.coordinator.State().String()}
	if req, ok := s.coordinator.ActiveRequest(); ok {
		data.Mode = req.Mode.String()
		data.Reason = req.Reason
	}
	return events.Event{Type: events.TypePowerState, Data: data}
}

func parseConfirm(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("confirm")
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errInvalidConfirm
	}
	return v, nil
}

// withTrigger builds the request from the HTTP call and answers with the
// coordinator's verdict.
func (s *Server) withTrigger(build func(r *http.Request, confirm bool) shutdown.ShutdownRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		confirm, err := parseConfirm(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req := build(r, confirm)
		s.respondTrigger(w, req, s.coordinator.Request(req))
	}
}

func (s *Server) respondTrigger(w http.ResponseWriter, req shutdown.ShutdownRequest, res shutdown.TriggerResult) {
	status := http.StatusAccepted
	if res == shutdown.AlreadyRunning {
		status = http.StatusConflict
	}
	writeJSON(w, status, TriggerResponse{Result: res.String(), Mode: req.Mode.String()})
}

func (s *Server) rebootHandler() http.HandlerFunc {
	return withBody(nil, func(w http.ResponseWriter, r *http.Request, body *rebootRequest) {
		confirm, err := parseConfirm(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req := shutdown.NewRebootRequest(body.Reason, confirm)
		s.respondTrigger(w, req, s.coordinator.Request(req))
	})
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	if s.confirmer == nil {
		http.Error(w, ErrNothingPending.Error(), http.StatusNotFound)
		return
	}
	switch err := s.confirmer.Confirm(); {
	case errors.Is(err, ErrNothingPending):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	if s.confirmer == nil || !s.confirmer.Cancel() {
		http.Error(w, "nothing to cancel", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
