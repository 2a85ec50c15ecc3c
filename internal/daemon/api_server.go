package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pipcast/internal/api"
	"pipcast/internal/config"
	"pipcast/internal/logging"
)

type apiServer struct {
	cfg    *config.Config
	bind   string
	logger *slog.Logger
	daemon *Daemon
	jobs   *api.JobService

	handler http.Handler
	server  *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		cfg:    cfg,
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
		jobs:   d.jobs,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Handle("/metrics", d.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(cfg.Server.APIToken))
		r.Get("/outputs/{name}", srv.handleOutput)
		r.Route("/api", func(r chi.Router) {
			r.Get("/status", srv.handleStatus)
			r.Get("/profiles", srv.handleProfiles)
			r.Get("/jobs", srv.handleJobs)
			r.Get("/jobs/{id}", srv.handleJob)
			r.Get("/jobs/{id}/events", srv.handleJobEvents)
			r.Group(func(r chi.Router) {
				if limit := cfg.Server.RateLimitPerMinute; limit > 0 {
					r.Use(rateLimit(limit, time.Minute))
				}
				r.Post("/render", srv.handleRender)
				r.Post("/render/stream", srv.handleRenderStream)
				r.Post("/jobs", srv.handleSubmit)
			})
		})
	})
	srv.handler = r

	// Renders hold their response open for as long as the encode runs, so
	// only header reads are bounded.
	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.server.BaseContext = func(net.Listener) context.Context { return ctx }
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		_ = s.server.Close()
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
