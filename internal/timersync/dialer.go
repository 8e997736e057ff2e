package timersync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultDialTimeout = 5 * time.Second

// Dialer opens a connection to the timer.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

// NetDialer dials a stream socket.
type NetDialer struct {
	Network string
	Address string
	Timeout time.Duration
}

// TCPDialer dials the timer's TCP server.
func TCPDialer(addr string) *NetDialer {
	return &NetDialer{Network: "tcp", Address: addr, Timeout: defaultDialTimeout}
}

// UnixDialer dials a local socket, the stand-in for the timer's named pipe.
func UnixDialer(path string) *NetDialer {
	return &NetDialer{Network: "unix", Address: path, Timeout: defaultDialTimeout}
}

func (d *NetDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	return nd.DialContext(ctx, d.Network, d.Address)
}

func (d *NetDialer) String() string {
	return d.Network + "://" + d.Address
}

// WebSocketDialer carries the line protocol over websocket text frames,
// one line per frame.
type WebSocketDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	wd := d.Dialer
	if wd == nil {
		wd = websocket.DefaultDialer
	}
	conn, _, err := wd.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocketStream(conn), nil
}

func (d *WebSocketDialer) String() string {
	return d.URL
}

// NewDialer builds a dialer for a configured transport name.
func NewDialer(transport, address string) (Dialer, error) {
	switch strings.ToLower(transport) {
	case "tcp", "":
		return TCPDialer(address), nil
	case "unix":
		return UnixDialer(address), nil
	case "websocket", "ws":
		url := address
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			url = "ws://" + url + "/livesplit"
		}
		return &WebSocketDialer{URL: url}, nil
	default:
		return nil, fmt.Errorf("unknown timer transport %q (want tcp, unix or websocket)", transport)
	}
}

// WebSocketStream adapts a websocket connection to a line stream. Each
// text frame read is surfaced as one newline-terminated line; each line
// written becomes one frame. One reader and one writer may use it
// concurrently.
type WebSocketStream struct {
	conn *websocket.Conn

	rmu sync.Mutex
	buf []byte

	wmu sync.Mutex
}

func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

func (s *WebSocketStream) Read(p []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	for len(s.buf) == 0 {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		s.buf = append(msg, '\n')
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *WebSocketStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	for _, line := range bytes.Split(p, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			continue
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (s *WebSocketStream) Close() error {
	s.wmu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.wmu.Unlock()
	return s.conn.Close()
}
