// Package dashboard serves the operational status endpoints: session state,
// recent logs and the metrics registry.
package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"tradegate/config"
	"tradegate/internal/metrics"
	"tradegate/internal/session"
	"tradegate/logger"
)

// StatusSource is the slice of the session the dashboard reads.
type StatusSource interface {
	Status() session.Status
}

// Server exposes /healthz, /status, /logs and /metrics on the configured
// address.
type Server struct {
	cfg    config.DashboardConfig
	log    *logger.Entry
	source StatusSource
	logs   *logStore
	http   *http.Server
}

// NewServer attaches the log capture hook and builds the server. The
// returned server does not listen until Run.
func NewServer(cfg config.DashboardConfig, log *logger.Log, source StatusSource) *Server {
	s := &Server{
		cfg:    cfg,
		log:    log.WithComponent("dashboard"),
		source: source,
		logs:   newLogStore(cfg.LogSize),
	}
	log.AddHook(s.logs)
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/logs", s.handleLogs)
	mux.Handle("/metrics", metrics.Handler())

	s.http = &http.Server{
		Addr:              normalizeAddress(s.cfg.Addr),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logger.Fields{"addr": s.http.Addr}).Info("dashboard listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.cleanup()
		return nil
	case err := <-errCh:
		s.cleanup()
		return err
	}
}

func (s *Server) cleanup() {
	s.logs.disable()
	if s.http != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.source.Status())
}

func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logs.snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func normalizeAddress(addr string) string {
	if addr == "" {
		return "127.0.0.1:8322"
	}
	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8322")
	}
	return addr
}
