package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
)

// TimerEvent is broadcast to hub subscribers for every protocol line.
type TimerEvent struct {
	Kind   string     `json:"kind"` // "line" or "connection"
	Remote string     `json:"remote"`
	Line   string     `json:"line,omitempty"`
	Reply  []string   `json:"reply,omitempty"`
	Known  bool       `json:"known"`
	State  TimerState `json:"state"`
	Time   time.Time  `json:"time"`
}

// ClientInfo describes a connected protocol client.
type ClientInfo struct {
	RemoteAddr    string    `json:"remote_addr"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
}

// ServerStats summarises the line server.
type ServerStats struct {
	Running          bool         `json:"running"`
	ClientCount      int          `json:"client_count"`
	Address          string       `json:"address"`
	StartTime        time.Time    `json:"start_time,omitempty"`
	TotalConnections int          `json:"total_connections"`
	MessagesSent     int          `json:"messages_sent"`
	MessagesReceived int          `json:"messages_received"`
	Clients          []ClientInfo `json:"clients"`
}

// LineServer exposes a Timer over the line protocol. Connections share
// one timer; each line gets its replies on the connection it came from.
type LineServer struct {
	timer *Timer
	hub   *Hub
	clock clock.Clock
	log   logrus.FieldLogger
	eol   string

	mu        sync.Mutex
	listener  net.Listener
	startTime time.Time
	clients   map[io.ReadWriteCloser]*ClientInfo
	total     int
	sent      int
	received  int
}

// NewLineServer creates a line server for timer. hub may be nil.
func NewLineServer(timer *Timer, hub *Hub, clk clock.Clock, log logrus.FieldLogger, lineEnding string) *LineServer {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	eol := "\r\n"
	if strings.EqualFold(lineEnding, "lf") {
		eol = "\n"
	}
	return &LineServer{
		timer:   timer,
		hub:     hub,
		clock:   clk,
		log:     log.WithField("component", "lineserver"),
		eol:     eol,
		clients: make(map[io.ReadWriteCloser]*ClientInfo),
	}
}

// Timer returns the served timer.
func (s *LineServer) Timer() *Timer {
	return s.timer
}

// Serve accepts connections on ln until it is closed.
func (s *LineServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.startTime = s.clock.Now()
	s.mu.Unlock()
	s.log.WithField("addr", ln.Addr().String()).Info("timer line server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.ServeConn(conn, conn.RemoteAddr().String())
	}
}

// Close stops accepting and drops every connected client.
func (s *LineServer) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	conns := make([]io.ReadWriteCloser, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	if ln != nil {
		return ln.Close()
	}
	return nil
}

// ServeConn runs the protocol on one connection until it closes.
func (s *LineServer) ServeConn(conn io.ReadWriteCloser, remote string) {
	info := &ClientInfo{RemoteAddr: remote, ConnectedAt: s.clock.Now()}
	s.mu.Lock()
	s.clients[conn] = info
	s.total++
	s.mu.Unlock()
	s.log.WithField("remote", remote).Info("timer client connected")
	s.broadcast(TimerEvent{Kind: "connection", Remote: remote})

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		s.log.WithField("remote", remote).Info("timer client disconnected")
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		replies, known := s.timer.Handle(line)
		if !known {
			s.log.WithFields(logrus.Fields{"remote": remote, "line": line}).Warn("unknown timer command")
		}

		s.mu.Lock()
		info.LastMessageAt = s.clock.Now()
		info.MessageCount++
		s.received++
		s.sent += len(replies)
		s.mu.Unlock()

		for _, r := range replies {
			if _, err := io.WriteString(conn, r+s.eol); err != nil {
				return
			}
		}
		s.broadcast(TimerEvent{Kind: "line", Remote: remote, Line: line, Reply: replies, Known: known})
	}
}

func (s *LineServer) broadcast(e TimerEvent) {
	if s.hub == nil {
		return
	}
	e.State = s.timer.State()
	e.Time = s.clock.Now()
	s.hub.Broadcast(e)
}

// Stats returns connection and traffic counters.
func (s *LineServer) Stats() ServerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := ServerStats{
		Running:          s.listener != nil,
		ClientCount:      len(s.clients),
		StartTime:        s.startTime,
		TotalConnections: s.total,
		MessagesSent:     s.sent,
		MessagesReceived: s.received,
		Clients:          make([]ClientInfo, 0, len(s.clients)),
	}
	if s.listener != nil {
		st.Address = s.listener.Addr().String()
	}
	for _, c := range s.clients {
		st.Clients = append(st.Clients, *c)
	}
	sort.Slice(st.Clients, func(i, j int) bool {
		return st.Clients[i].ConnectedAt.Before(st.Clients[j].ConnectedAt)
	})
	return st
}
