package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
)

// Server is the HTTP side of the fake timer: status endpoints, the
// dashboard feed and the WebSocket protocol carrier.
type Server struct {
	httpServer *http.Server
	lines      *LineServer
	hub        *Hub
	clock      clock.Clock
	log        logrus.FieldLogger
	mux        *http.ServeMux
}

// New creates a server for ls. hub may be nil, in which case /ws is not
// registered.
func New(addr string, ls *LineServer, hub *Hub, clk clock.Clock, log logrus.FieldLogger) *Server {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		lines: ls,
		hub:   hub,
		clock: clk,
		log:   log.WithField("component", "http"),
		mux:   http.NewServeMux(),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(s.mux, s.log, clk),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/state", s.handleState)
	s.mux.HandleFunc("/stats", s.handleStats)
	s.mux.HandleFunc("/lines", s.handleLines)
	s.mux.HandleFunc("/livesplit", LineHandler(s.lines))
	if s.hub != nil {
		s.mux.HandleFunc("/ws", s.hub.HandleWebSocket)
		s.mux.HandleFunc("/dashboard", s.handleDashboard)
	}
}

// handleRoot serves a welcome message.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{
		"service": "splitghost-timer",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleState returns the timer snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.lines.Timer().State())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.lines.Stats())
}

// handleLines returns every protocol line the timer received.
func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.lines.Timer().Received())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(DashboardHTML))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.log.WithField("addr", ln.Addr().String()).Info("timer http server listening")
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server and the line server.
func (s *Server) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.lines.Close()
	return s.httpServer.Shutdown(ctx)
}
