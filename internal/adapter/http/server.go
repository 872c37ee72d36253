// Package http exposes the scheduler trigger surface plus health and metrics
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// Ingester runs one fetch-parse-store cycle. Implemented by ingest.Pipeline.
type Ingester interface {
	Run(ctx context.Context) (domain.RunReport, error)
}

// Deduplicator runs one dedup pass. Implemented by dedup.Engine.
type Deduplicator interface {
	RunPass(ctx context.Context) (domain.DedupReport, error)
}

// Pinger reports store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes scheduler triggers to the ingestion pipeline or the dedup
// engine. A process serves exactly one role; the handler for the other role
// responds 404.
type Server struct {
	httpServer *http.Server
	ingester   Ingester
	dedup      Deduplicator
	pinger     Pinger
	role       string
	logger     *slog.Logger
}

// NewIngestServer creates the HTTP surface for a per-source ingester.
func NewIngestServer(addr string, ingester Ingester, pinger Pinger, logger *slog.Logger) *Server {
	s := &Server{ingester: ingester, pinger: pinger, role: "ingester", logger: logger}
	s.init(addr)
	return s
}

// NewDedupServer creates the HTTP surface for the dedup service.
func NewDedupServer(addr string, dedup Deduplicator, pinger Pinger, logger *slog.Logger) *Server {
	s := &Server{dedup: dedup, pinger: pinger, role: "dedup", logger: logger}
	s.init(addr)
	return s
}

func (s *Server) init(addr string) {
	mux := http.NewServeMux()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
		// Runs block until the feed responds and the batch commits, so the
		// write timeout must exceed the fetch retry budget.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	if s.ingester != nil {
		mux.HandleFunc("POST /ingest", s.handleIngest)
	}
	if s.dedup != nil {
		mux.HandleFunc("POST /deduplicate", s.handleDeduplicate)
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "role", s.role)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingester.Run(r.Context())
	if err != nil {
		s.logger.Error("ingestion run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeduplicate(w http.ResponseWriter, r *http.Request) {
	report, err := s.dedup.RunPass(r.Context())
	if err != nil {
		s.logger.Error("dedup pass failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok", "role": s.role}
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort trigger response
}
