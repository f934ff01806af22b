// Package api exposes the monitoring HTTP surface: health, metrics, latest
// and recent results, session summary and export, pipeline commands, and a
// websocket stream of live results.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vigilia-data/fatigue.report/internal/fusion"
	"github.com/vigilia-data/fatigue.report/internal/monitoring"
	"github.com/vigilia-data/fatigue.report/internal/pipeline"
	"github.com/vigilia-data/fatigue.report/internal/report"
	"github.com/vigilia-data/fatigue.report/internal/security"
	"github.com/vigilia-data/fatigue.report/internal/storage/sqlite"
	"github.com/vigilia-data/fatigue.report/internal/version"
)

// Config contains configuration options for the monitoring server.
type Config struct {
	Address string
}

// Server handles the HTTP interface for monitoring a detection pipeline.
// The optional store enables the persistence-backed endpoints.
type Server struct {
	address string
	pipe    *pipeline.Pipeline
	store   *sqlite.Store
	server  *http.Server

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

// NewServer creates a monitoring server for the given pipeline. store may
// be nil, which disables the history endpoints.
func NewServer(cfg Config, pipe *pipeline.Pipeline, store *sqlite.Store) *Server {
	s := &Server{
		address: cfg.Address,
		pipe:    pipe,
		store:   store,
		clients: map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.server = &http.Server{
		Addr:    cfg.Address,
		Handler: s.setupRoutes(),
	}
	return s
}

// Start begins the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("starting monitoring server on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("monitoring server error: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down monitoring server")

	s.closeClients()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("monitoring server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("monitoring server force close error: %v", err)
		}
	}
	return nil
}

// Handler returns the route table for the server, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("GET /api/results/latest", s.handleLatest)
	mux.HandleFunc("GET /api/results/recent", s.handleRecent)
	mux.HandleFunc("GET /api/alerts/recent", s.handleAlerts)
	mux.HandleFunc("GET /api/session/summary", s.handleSummary)
	mux.HandleFunc("GET /api/export/alerts", s.handleExport)
	mux.HandleFunc("POST /api/commands/reset", s.handleReset)
	mux.HandleFunc("POST /api/commands/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /charts/session", s.handleSessionChart)
	mux.HandleFunc("GET /live", s.handleLive)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("response encode error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "fatigue-monitor", "version": "%s", "timestamp": "%s"}`,
		version.Version, time.Now().UTC().Format(time.RFC3339))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Metrics().Snapshot())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Session().Stats())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	result, ok := s.pipe.Session().History().Latest()
	if !ok {
		http.Error(w, "no results yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// countParam parses the ?n= query with a default and an upper bound.
func countParam(r *http.Request, fallback, max int) int {
	n := fallback
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if n > max {
		n = max
	}
	return n
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	n := countParam(r, 10, fusion.DefaultHistoryCapacity)
	results := s.pipe.Session().History().Recent(n)
	if results == nil {
		results = []fusion.DetectionResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history store not configured", http.StatusServiceUnavailable)
		return
	}
	records, err := s.store.RecentAlerts(s.pipe.Session().ID(), countParam(r, 20, 500))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []sqlite.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history store not configured", http.StatusServiceUnavailable)
		return
	}
	summary, err := s.store.Summarize(s.pipe.Session().ID())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history store not configured", http.StatusServiceUnavailable)
		return
	}
	sessionID := s.pipe.Session().ID()
	limit := countParam(r, 500, 5000)
	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="alerts-%s.csv"`, security.SanitizeFilename(sessionID)))
		if err := s.store.ExportCSV(w, sessionID, limit); err != nil {
			monitoring.Logf("csv export error: %v", err)
		}
	case "json", "":
		w.Header().Set("Content-Type", "application/json")
		if err := s.store.ExportJSON(w, sessionID, limit); err != nil {
			monitoring.Logf("json export error: %v", err)
		}
	default:
		http.Error(w, "unknown format", http.StatusBadRequest)
	}
}

func (s *Server) handleSessionChart(w http.ResponseWriter, r *http.Request) {
	session := s.pipe.Session()
	data := report.Data{
		Stats:   session.Stats(),
		Results: session.History().Recent(fusion.DefaultHistoryCapacity),
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, data); err != nil {
		http.Error(w, fmt.Sprintf("failed to render report: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.pipe.Command(pipeline.CommandReset)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset queued"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.pipe.Command(pipeline.CommandSnapshot)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "snapshot queued"})
}

// liveUpdate is one websocket message: the displayed result plus the
// metrics captured alongside it.
type liveUpdate struct {
	Result  fusion.DetectionResult `json:"result"`
	Metrics pipeline.Snapshot      `json:"metrics"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("websocket upgrade failed: %v", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Reader loop detects client disconnect; inbound messages are ignored.
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Present implements pipeline.Presenter by broadcasting each displayed
// result to every live websocket client. Clients that cannot keep up are
// dropped rather than allowed to stall the display stage.
func (s *Server) Present(result fusion.DetectionResult, metrics pipeline.Snapshot) {
	update := liveUpdate{Result: result, Metrics: metrics}
	data, err := json.Marshal(update)
	if err != nil {
		monitoring.Logf("live update encode error: %v", err)
		return
	}

	for _, conn := range s.connList() {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.dropClient(conn)
		}
	}
}

// ClientCount reports the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) connList() []*websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	return conns
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	_, present := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	if present {
		conn.Close()
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.clients = map[*websocket.Conn]struct{}{}
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}
