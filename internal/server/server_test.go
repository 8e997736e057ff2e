package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
	"github.com/SmitUplenchwar2687/splitghost/internal/timersync"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type testServer struct {
	baseURL  string
	lineAddr string
	lines    *LineServer
	hub      *Hub
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	vc := clock.NewVirtualClock(epoch)
	hub := NewHub(quietLogger())
	ls := NewLineServer(NewTimer(nil), hub, vc, quietLogger(), "crlf")

	lineLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go ls.Serve(lineLn)

	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(httpLn.Addr().String(), ls, hub, vc, quietLogger())
	go srv.StartOnListener(httpLn)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return &testServer{
		baseURL:  "http://" + httpLn.Addr().String(),
		lineAddr: lineLn.Addr().String(),
		lines:    ls,
		hub:      hub,
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTimer_FullRun(t *testing.T) {
	tm := NewTimer([]string{"A", "B", "C"})

	reply, _ := tm.Handle("getcurrentsplitname")
	if len(reply) != 1 || reply[0] != "-" {
		t.Errorf("split name before start = %v, want [-]", reply)
	}

	tm.Handle("starttimer")
	reply, _ = tm.Handle("getcurrentsplitname")
	if reply[0] != "A" {
		t.Errorf("split name = %q, want A", reply[0])
	}

	tm.Handle("split")
	tm.Handle("skipsplit")
	reply, _ = tm.Handle("getcurrentsplitname")
	if reply[0] != "C" {
		t.Errorf("split name = %q, want C", reply[0])
	}

	// Skipping the last segment is not allowed.
	tm.Handle("skipsplit")
	if got := tm.State().SplitIndex; got != 2 {
		t.Errorf("split index = %d, want 2", got)
	}

	tm.Handle("setgametime 12.5")
	tm.Handle("split")
	reply, _ = tm.Handle("getcurrenttimerphase")
	if reply[0] != "Ended" {
		t.Errorf("phase = %q, want Ended", reply[0])
	}

	st := tm.State()
	if st.GameTime != 12.5 {
		t.Errorf("game time = %v, want 12.5", st.GameTime)
	}
	if st.Attempts != 1 || st.Completed != 1 {
		t.Errorf("attempts/completed = %d/%d, want 1/1", st.Attempts, st.Completed)
	}
}

func TestTimer_StartOnlyFromNotRunning(t *testing.T) {
	tm := NewTimer(nil)
	tm.Handle("starttimer")
	tm.Handle("split")
	tm.Handle("starttimer")

	if got := tm.State().SplitIndex; got != 1 {
		t.Errorf("split index = %d, want 1", got)
	}
	if got := tm.State().Attempts; got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestTimer_PauseAndReset(t *testing.T) {
	tm := NewTimer(nil)
	tm.Handle("starttimer")
	tm.Handle("pause")
	if got := tm.State().Phase; got != "Paused" {
		t.Errorf("phase = %q, want Paused", got)
	}
	tm.Handle("resume")
	tm.Handle("pausegametime")
	if !tm.State().GameTimePaused {
		t.Error("game time should be paused")
	}
	tm.Handle("unpausegametime")
	if tm.State().GameTimePaused {
		t.Error("game time should be running")
	}

	tm.Handle("reset")
	st := tm.State()
	if st.Phase != "NotRunning" || st.SplitIndex != -1 {
		t.Errorf("after reset phase=%q index=%d, want NotRunning/-1", st.Phase, st.SplitIndex)
	}
}

func TestTimer_UnknownLine(t *testing.T) {
	tm := NewTimer(nil)
	reply, known := tm.Handle("frobnicate")
	if known || reply != nil {
		t.Errorf("Handle(frobnicate) = %v, %v; want nil, false", reply, known)
	}
	if _, known := tm.Handle("setgametime abc"); known {
		t.Error("malformed setgametime should be rejected")
	}
	if got := len(tm.Received()); got != 2 {
		t.Errorf("received = %d, want 2", got)
	}
}

func TestServer_Root(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.baseURL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["service"] != "splitghost-timer" {
		t.Errorf("service = %q, want %q", body["service"], "splitghost-timer")
	}
	if body["time"] != epoch.Format(time.RFC3339) {
		t.Errorf("time = %q, want virtual clock time", body["time"])
	}
}

func TestServer_Health(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.baseURL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_NotFound(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.baseURL + "/nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_Dashboard(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.baseURL + "/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
}

func TestLineServer_TCP(t *testing.T) {
	ts := startTestServer(t)

	conn, err := net.Dial("tcp", ts.lineAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	io.WriteString(conn, "starttimer\r\ngetcurrentsplitname\r\n")
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "Intro\r\n" {
		t.Errorf("reply = %q, want %q", line, "Intro\r\n")
	}

	io.WriteString(conn, "getcurrenttimerphase\n")
	line, _ = r.ReadString('\n')
	if line != "Running\r\n" {
		t.Errorf("reply = %q, want %q", line, "Running\r\n")
	}

	stats := ts.lines.Stats()
	if !stats.Running || stats.ClientCount != 1 || stats.TotalConnections != 1 {
		t.Errorf("stats = %+v, want running with one client", stats)
	}
	if stats.MessagesReceived != 3 || stats.MessagesSent != 2 {
		t.Errorf("received/sent = %d/%d, want 3/2", stats.MessagesReceived, stats.MessagesSent)
	}
	if len(stats.Clients) != 1 || stats.Clients[0].MessageCount != 3 {
		t.Errorf("clients = %+v", stats.Clients)
	}
}

func TestServer_StateEndpoint(t *testing.T) {
	ts := startTestServer(t)
	ts.lines.Timer().Handle("starttimer")
	ts.lines.Timer().Handle("split")

	resp, err := http.Get(ts.baseURL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var st TimerState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Phase != "Running" || st.SplitName != "Jungle" || st.SplitIndex != 1 {
		t.Errorf("state = %+v, want Running on Jungle", st)
	}
}

func TestServer_WebSocketCarrier(t *testing.T) {
	ts := startTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.baseURL, "http") + "/livesplit"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte("getcurrenttimerphase"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "NotRunning" {
		t.Errorf("reply = %q, want %q", data, "NotRunning")
	}
}

func TestHub_BroadcastsLines(t *testing.T) {
	ts := startTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.baseURL, "http") + "/ws"
	sub, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	waitUntil(t, "hub subscriber", func() bool { return ts.hub.ClientCount() == 1 })

	conn, err := net.Dial("tcp", ts.lineAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	io.WriteString(conn, "starttimer\r\n")

	sub.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev TimerEvent
		if err := sub.ReadJSON(&ev); err != nil {
			t.Fatal(err)
		}
		if ev.Kind != "line" {
			continue
		}
		if ev.Line != "starttimer" || !ev.Known {
			t.Errorf("event = %+v, want known starttimer", ev)
		}
		if ev.State.Phase != "Running" {
			t.Errorf("event phase = %q, want Running", ev.State.Phase)
		}
		break
	}
}

func TestLineServer_DrivenByClient(t *testing.T) {
	ts := startTestServer(t)

	cfg := timersync.DefaultConfig()
	cfg.AckTimeout = 500 * time.Millisecond
	cfg.SyncInterval = time.Hour
	c := timersync.New(timersync.TCPDialer(ts.lineAddr), cfg, timersync.WithLogger(quietLogger()))
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	waitUntil(t, "client connected", func() bool { return c.Phase() == timersync.PhaseNotRunning })

	c.Command(splits.StartTimer, 0)
	waitUntil(t, "run start", func() bool { return c.Expected() == splits.SplitIntro })
	c.Command(splits.SplitIntro, 10)
	waitUntil(t, "first split", func() bool { return c.Expected() == splits.SplitJungle })
	c.Command(splits.SplitFinal, 42.25)
	waitUntil(t, "run end", func() bool { return c.Phase() == timersync.PhaseEnded })

	st := ts.lines.Timer().State()
	if st.Completed != 1 {
		t.Errorf("completed = %d, want 1", st.Completed)
	}
	if st.GameTime != 42.25 {
		t.Errorf("game time = %v, want 42.25", st.GameTime)
	}
}
