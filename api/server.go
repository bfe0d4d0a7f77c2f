package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/b0bbywan/go-odio-powerd/backend"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

type capabilityReporter interface {
	Capabilities() backend.Capabilities
}

type Server struct {
	mux         *http.ServeMux
	config      *config.ApiConfig
	coordinator *shutdown.Coordinator
	confirmer   *PendingConfirmer
	broadcaster *backend.Broadcaster
	power       capabilityReporter
	info        func() (backend.ServerDeviceInfo, error)
}

// NewServer returns nil when the API is disabled. b may be nil, in which
// case only the power routes are served.
func NewServer(cfg *config.ApiConfig, b *backend.Backend, c *shutdown.Coordinator, confirmer *PendingConfirmer) *Server {
	if cfg == nil || !cfg.Enabled || c == nil {
		return nil
	}

	server := &Server{
		mux:         http.NewServeMux(),
		config:      cfg,
		coordinator: c,
		confirmer:   confirmer,
	}
	if b != nil {
		server.broadcaster = b.Broadcaster
		server.info = b.GetServerDeviceInfo
		if b.Power != nil {
			server.power = b.Power
		}
	}
	server.register()
	return server
}

func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	if len(s.config.CORSOrigins) > 0 {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}
	return handler
}

func (s *Server) Run(ctx context.Context) error {
	handler := s.Handler()

	servers := make([]*http.Server, len(s.config.Listen))
	for i, addr := range s.config.Listen {
		servers[i] = &http.Server{
			Addr:    addr,
			Handler: handler,
			// Derive request contexts from ctx so that long-lived handlers
			// (e.g. SSE) exit cleanly when the application shuts down,
			// without waiting for the graceful-shutdown timeout.
			BaseContext: func(_ net.Listener) context.Context { return ctx },
		}
	}

	// Shutdown all servers on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Info("[api] server %s shutdown error: %v", srv.Addr, err)
			}
		}
	}()

	// Start one goroutine per listen address
	errCh := make(chan error, len(servers))
	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			logger.Info("[api] http server running on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	wg.Wait()
	close(errCh)
	return <-errCh
}

func (s *Server) register() {
	// 404 on root for security
	s.mux.HandleFunc("/", http.NotFound)

	s.registerServerRoutes()
	s.registerPowerRoutes()
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")
	logger.Info("[api] CORS enabled, origins: %v", origins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if wildcard {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if slices.Contains(origins, origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
