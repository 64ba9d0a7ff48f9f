package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	appconfig "rektflow/config"
	"rektflow/logger"
)

// Server answers liveness probes. Hosting platforms and uptime monitors
// expect a plain 200 on the root path.
type Server struct {
	srv *http.Server
	log *logger.Log
}

func NewServer(cfg appconfig.HealthConfig) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "BOT ACTIVE")
	})

	return &Server{
		srv: &http.Server{
			Addr:         cfg.Address,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		log: logger.GetLogger(),
	}
}

// Run serves until Shutdown is called. It blocks, so callers run it in a
// goroutine.
func (s *Server) Run() error {
	s.log.WithComponent("health_server").WithFields(logger.Fields{
		"address": s.srv.Addr,
	}).Info("health server listening")

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.WithComponent("health_server").Info("shutting down health server")
	return s.srv.Shutdown(ctx)
}
