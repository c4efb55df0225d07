// Package management provides a lightweight HTTP API for runtime
// introspection of the running gateway (SPEC_FULL.md §4, adapted from the
// teacher proxy's management API): a second listener, off by default, behind
// its own bearer token.
//
// Endpoints:
//
//	GET /admin/status    - uptime, configured analyzers
//	GET /admin/breakers  - full breaker snapshot (state, failure ratio) per analyzer
//	GET /admin/metrics   - Prometheus exposition format
package management

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moderation-gateway/internal/breaker"
	"moderation-gateway/internal/config"
	"moderation-gateway/internal/metrics"
)

// Server is the admin introspection API server.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	breakers  *breaker.Registry
	metrics   *metrics.Metrics
	token     string // bearer token for auth; empty = no auth
}

// New creates an admin Server. token is the bearer token required on every
// request; an empty token disables authentication (intended for
// loopback-only deployments).
func New(cfg *config.Config, breakers *breaker.Registry, m *metrics.Metrics, token string) *Server {
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		breakers:  breakers,
		metrics:   m,
		token:     token,
	}
	if s.token != "" {
		log.Printf("[ADMIN] Bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/status", s.handleStatus)
	mux.HandleFunc("/admin/breakers", s.handleBreakers)
	mux.Handle("/admin/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			log.Printf("[ADMIN] Unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	Status      string   `json:"status"`
	Uptime      string   `json:"uptime"`
	GatewayPort int      `json:"gatewayPort"`
	Analyzers   []string `json:"analyzers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	analyzers := make([]string, 0, len(config.AllAnalyzers))
	for _, name := range config.AllAnalyzers {
		analyzers = append(analyzers, string(name))
	}
	resp := statusResponse{
		Status:      "running",
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		GatewayPort: s.cfg.GatewayPort,
		Analyzers:   analyzers,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBreakers(w http.ResponseWriter, _ *http.Request) {
	snap := s.breakers.Snapshot()
	out := make(map[string]breaker.Snapshot, len(snap))
	for name, b := range snap {
		out[string(name)] = b
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ADMIN] JSON encode error: %v", err)
	}
}

// ListenAndServe starts the admin HTTP server on loopback only.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.AdminPort)
	log.Printf("[ADMIN] Listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
