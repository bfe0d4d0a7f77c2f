package api

import (
	"net/http"

	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

func (s *Server) registerServerRoutes() {
	if s.info != nil {
		s.mux.HandleFunc(
			"GET /server",
			JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
				return s.info()
			}),
		)
	}

	if s.broadcaster != nil {
		s.mux.HandleFunc("GET /events", sseHandler(s.broadcaster, s.stateEvent))
		logger.Info("[api] SSE route registered at /events")
	}
}

func (s *Server) registerPowerRoutes() {
	s.mux.HandleFunc(
		"GET /power",
		JSONHandler(s.powerStatus),
	)
	s.mux.HandleFunc(
		"POST /power/shutdown",
		s.withTrigger(func(r *http.Request, confirm bool) shutdown.ShutdownRequest {
			return shutdown.NewShutdownRequest(confirm)
		}),
	)
	s.mux.HandleFunc(
		"POST /power/reboot",
		s.rebootHandler(),
	)
	s.mux.HandleFunc(
		"POST /power/recovery",
		s.withTrigger(func(r *http.Request, confirm bool) shutdown.ShutdownRequest {
			return shutdown.NewRecoveryRequest(confirm)
		}),
	)
	s.mux.HandleFunc(
		"POST /power/confirm",
		s.confirmHandler,
	)
	s.mux.HandleFunc(
		"POST /power/cancel",
		s.cancelHandler,
	)
}
