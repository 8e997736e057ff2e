package server

import (
	"net/http"

	"github.com/sirupsen/logrus"

	internalserver "github.com/SmitUplenchwar2687/splitghost/internal/server"
	"github.com/SmitUplenchwar2687/splitghost/pkg/clock"
)

// Server is the HTTP front end of the fake split timer.
type Server = internalserver.Server

// Timer is an in-memory split timer speaking the line protocol.
type Timer = internalserver.Timer

// TimerState is a snapshot of a Timer.
type TimerState = internalserver.TimerState

// LineServer serves a Timer over TCP and websocket connections.
type LineServer = internalserver.LineServer

// Hub manages WebSocket clients and broadcasts timer events.
type Hub = internalserver.Hub

// DashboardHTML is the embedded single-page dashboard.
const DashboardHTML = internalserver.DashboardHTML

// New creates a new HTTP server for ls. hub may be nil.
func New(addr string, ls *LineServer, hub *Hub, clk clock.Clock, log logrus.FieldLogger) *Server {
	return internalserver.New(addr, ls, hub, clk, log)
}

// NewTimer creates a stopped timer with the given segment names.
func NewTimer(names []string) *Timer {
	return internalserver.NewTimer(names)
}

// NewLineServer creates a line server for timer.
func NewLineServer(timer *Timer, hub *Hub, clk clock.Clock, log logrus.FieldLogger, lineEnding string) *LineServer {
	return internalserver.NewLineServer(timer, hub, clk, log, lineEnding)
}

// NewHub creates a new WebSocket hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return internalserver.NewHub(log)
}

// LoggingMiddleware logs every HTTP request.
func LoggingMiddleware(next http.Handler, log logrus.FieldLogger, clk clock.Clock) http.Handler {
	return internalserver.LoggingMiddleware(next, log, clk)
}
