package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	checkTimeout      = 2 * time.Second
)

// CheckFunc reports whether one dependency is reachable.
type CheckFunc func(ctx context.Context) error

type Options struct {
	Addr    string
	Metrics http.Handler
	Live    http.Handler
	Checks  map[string]CheckFunc
	Logger  *slog.Logger
}

// Server exposes the replicator's operational surface: liveness, Prometheus
// metrics and the live-update websocket.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	checks map[string]CheckFunc
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		checks: opts.Checks,
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics)
	}
	if opts.Live != nil {
		s.mux.Handle("GET /ws", opts.Live)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx ends, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting",
			"event", "http_server_starting",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"addr", s.addr,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped",
		"event", "http_server_stopped",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := healthResponse{Status: "ok"}
	if len(names) > 0 {
		response.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			response.Status = "degraded"
			response.Checks[name] = err.Error()
			continue
		}
		response.Checks[name] = "ok"
	}

	status := http.StatusOK
	if response.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
