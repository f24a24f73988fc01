// Package health provides the relay's operational HTTP endpoints:
// liveness/readiness checks and a Prometheus scrape target. rchat's
// Non-goals (spec.md §1) exclude a management dashboard, remote admin
// API, and file-transfer/shell surfaces the teacher's agent exposed
// here; this package keeps only what an operator needs to point a
// load balancer and a Prometheus server at.
package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports the relay's current load for /healthz.
type StatsProvider interface {
	Stats() Stats
}

// Stats is the subset of relay.Manager's Stats the health endpoint
// surfaces. It mirrors relay.Stats rather than importing it, so this
// package never depends on the relay package. Neither package imports
// the other; cmd/rchat-relay's managerStatsAdapter converts between them.
type Stats struct {
	RoomCount        int
	ParticipantCount int
}

// ServerConfig configures the health server.
type ServerConfig struct {
	// Address to listen on, e.g. ":9090".
	Address string

	// ReadTimeout for HTTP reads.
	ReadTimeout time.Duration

	// WriteTimeout for HTTP writes.
	WriteTimeout time.Duration
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":9090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves /healthz and /metrics for the relay process.
type Server struct {
	cfg      ServerConfig
	provider atomic.Value // StatsProvider
	server   *http.Server
	listener net.Listener
	running  atomic.Bool
}

// NewServer creates a health check server. provider may be nil before
// the relay's Manager is constructed; /healthz reports unavailable
// until SetProvider is called. Start can run concurrently with that
// later SetProvider call, so provider is stored behind atomic.Value
// rather than a plain field. cmd/rchat-relay builds its Manager first and
// passes the provider here directly.
func NewServer(cfg ServerConfig, provider StatsProvider) *Server {
	s := &Server{cfg: cfg}
	if provider != nil {
		s.provider.Store(provider)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// SetProvider attaches the relay's stats source once it exists.
func (s *Server) SetProvider(provider StatsProvider) {
	s.provider.Store(provider)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running.Store(true)

	go s.server.Serve(ln)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Address returns the server's listen address.
func (s *Server) Address() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// IsRunning reports whether the server has been started.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider, _ := s.provider.Load().(StatsProvider)
	if provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
		})
		return
	}

	stats := provider.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"room_count":        stats.RoomCount,
		"participant_count": stats.ParticipantCount,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
