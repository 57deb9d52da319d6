package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	"github.com/stormloop-dev/stormloop/pkg/realtime"
)

// SessionSource exposes tracked session state for inspection.
type SessionSource interface {
	Session() brainstorm.Session
	Progress() brainstorm.Progress
	RecentDrops() []realtime.DropRecord
}

// Server is the diagnostics HTTP endpoint, served while a watch is running.
type Server struct {
	metrics *Metrics
	log     logr.Logger

	mu      sync.Mutex
	sources map[int]SessionSource

	httpServer *http.Server
}

// NewServer creates a diagnostics server on addr.
func NewServer(addr string, metrics *Metrics, log logr.Logger) *Server {
	s := &Server{
		metrics: metrics,
		log:     log.WithName("diagnostics"),
		sources: make(map[int]SessionSource),
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/debug/sessions", s.handleSessions).Methods("GET")
	router.HandleFunc("/debug/sessions/{id}/drops", s.handleDrops).Methods("GET")

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Track registers a session source under its id.
func (s *Server) Track(id int, src SessionSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[id] = src
}

// Untrack removes a session source.
func (s *Server) Untrack(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, id)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving the diagnostics endpoint.
func (s *Server) ListenAndServe() error {
	s.log.Info("diagnostics listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

type sessionSummary struct {
	Session  brainstorm.Session  `json:"session"`
	Progress brainstorm.Progress `json:"progress"`
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	summaries := make(map[int]sessionSummary, len(s.sources))
	for id, src := range s.sources {
		summaries[id] = sessionSummary{
			Session:  src.Session(),
			Progress: src.Progress(),
		}
	}
	s.mu.Unlock()

	writeJSON(w, summaries)
}

func (s *Server) handleDrops(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	src, ok := s.sources[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "session not tracked", http.StatusNotFound)
		return
	}
	writeJSON(w, src.RecentDrops())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
