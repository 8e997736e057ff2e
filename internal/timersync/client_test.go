package timersync

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeTimer is a minimal scripted split timer speaking the line protocol.
type fakeTimer struct {
	mu      sync.Mutex
	lines   []string
	phase   string
	index   int
	conns   []io.ReadWriteCloser
	accepts atomic.Int32
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{phase: "NotRunning"}
}

// listen serves the fake on a loopback TCP port and returns its address.
func (f *fakeTimer) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
	return ln.Addr().String()
}

func (f *fakeTimer) serve(conn io.ReadWriteCloser) {
	f.accepts.Add(1)
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		for _, reply := range f.handle(scanner.Text()) {
			if _, err := io.WriteString(conn, reply+"\r\n"); err != nil {
				return
			}
		}
	}
}

func (f *fakeTimer) handle(line string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)

	names := splits.DefaultSplitNames
	switch {
	case line == LineStartTimer:
		if f.phase == "NotRunning" {
			f.phase, f.index = "Running", 0
		}
	case line == LineSplit, line == LineSkipSplit:
		if f.phase == "Running" {
			f.index++
			if f.index == len(names) {
				f.phase = "Ended"
			}
		}
	case line == LineReset:
		f.phase, f.index = "NotRunning", 0
	case line == LineGetSplitName:
		if f.phase != "Running" {
			return []string{"-"}
		}
		return []string{names[f.index]}
	case line == LineGetTimerPhase:
		return []string{f.phase}
	}
	return nil
}

func (f *fakeTimer) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *fakeTimer) count(line string) int {
	n := 0
	for _, l := range f.received() {
		if l == line {
			n++
		}
	}
	return n
}

func (f *fakeTimer) setPhase(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phase = p
}

func (f *fakeTimer) dropConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		c.Close()
	}
	f.conns = nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AckTimeout = 500 * time.Millisecond
	cfg.BackoffInitial = 10 * time.Millisecond
	cfg.BackoffStep = 10 * time.Millisecond
	cfg.BackoffMax = 30 * time.Millisecond
	cfg.SyncInterval = time.Hour
	return cfg
}

func startClient(t *testing.T, d Dialer, cfg Config, opts ...Option) *Client {
	t.Helper()
	c := New(d, cfg, opts...)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

// connected starts a client against the fake and waits for its initial
// state query to finish.
func connected(t *testing.T, f *fakeTimer, cfg Config, opts ...Option) *Client {
	t.Helper()
	c := startClient(t, TCPDialer(f.listen(t)), cfg, opts...)
	require.Eventually(t, func() bool { return f.count(LineGetTimerPhase) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return c.Phase() != PhaseNone }, waitFor, tick)
	return c
}

// flush queues a status query and waits for it, proving every earlier
// command has been processed.
func flush(t *testing.T, c *Client, f *fakeTimer) {
	t.Helper()
	before := f.count(LineGetTimerPhase)
	require.True(t, c.Enqueue(splits.UpdateStatus))
	require.Eventually(t, func() bool { return f.count(LineGetTimerPhase) > before }, waitFor, tick)
}

func TestClient_ConnectQueriesState(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	assert.Equal(t, Connected, c.Status())
	assert.Equal(t, PhaseNotRunning, c.Phase())
	assert.Equal(t, splits.StartTimer, c.Expected())
	assert.Equal(t, []string{LineGetSplitName, LineGetTimerPhase}, f.received())
}

func TestClient_StartAndSplit(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	c.Enqueue(splits.StartTimer)
	require.Eventually(t, func() bool { return c.Expected() == splits.SplitIntro }, waitFor, tick)

	c.Enqueue(splits.SplitIntro)
	c.Enqueue(splits.SplitJungle)
	require.Eventually(t, func() bool { return f.count(LineGetSplitName) == 4 }, waitFor, tick)
	assert.Equal(t, splits.SplitGears, c.Expected())

	assert.Equal(t, []string{
		LineGetSplitName, LineGetTimerPhase,
		LineStartTimer, LineGetSplitName,
		LineSplit, LineGetSplitName,
		LineSplit, LineGetSplitName,
	}, f.received())
}

func TestClient_SuppressesSplitBeforeStart(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	c.Enqueue(splits.SplitIntro)
	c.Enqueue(splits.SplitCave)
	flush(t, c, f)

	assert.Zero(t, f.count(LineSplit))
	assert.Zero(t, f.count(LineSkipSplit))
}

func TestClient_SuppressesSplitBehindExpected(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	c.Enqueue(splits.StartTimer)
	c.Enqueue(splits.SplitIntro)
	c.Enqueue(splits.SplitJungle)
	require.Eventually(t, func() bool { return f.count(LineGetSplitName) == 4 }, waitFor, tick)
	sent := len(f.received())

	c.Enqueue(splits.SplitIntro)
	c.Enqueue(splits.SplitJungle)
	flush(t, c, f)

	assert.Equal(t, []string{LineGetTimerPhase}, f.received()[sent:])
}

func TestClient_CatchesUpWithSkips(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	c.Enqueue(splits.StartTimer)
	require.Eventually(t, func() bool { return c.Expected() == splits.SplitIntro }, waitFor, tick)
	sent := len(f.received())

	c.Enqueue(splits.SplitGears)
	require.Eventually(t, func() bool { return f.count(LineGetSplitName) == 3 }, waitFor, tick)
	assert.Equal(t, splits.SplitPool, c.Expected())

	assert.Equal(t, []string{LineSkipSplit, LineSkipSplit, LineSplit, LineGetSplitName}, f.received()[sent:])
}

func TestClient_FinalSplitWithGameTime(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	c.Enqueue(splits.StartTimer)
	require.Eventually(t, func() bool { return c.Expected() == splits.SplitIntro }, waitFor, tick)
	sent := len(f.received())

	c.Command(splits.SplitFinal, 812.25)
	require.Eventually(t, func() bool { return c.Phase() == PhaseEnded }, waitFor, tick)

	want := []string{}
	for i := 0; i < 7; i++ {
		want = append(want, LineSkipSplit)
	}
	want = append(want, "setgametime 812.25", LineSplit, LineGetTimerPhase)
	assert.Equal(t, want, f.received()[sent:])
	require.Eventually(t, func() bool { return c.Expected() == splits.StartTimer }, waitFor, tick)
}

func TestClient_FinalSplitRealTime(t *testing.T) {
	f := newFakeTimer()
	cfg := testConfig()
	cfg.UseInGameTime = false
	c := connected(t, f, cfg)

	c.Enqueue(splits.StartTimer)
	require.Eventually(t, func() bool { return c.Expected() == splits.SplitIntro }, waitFor, tick)
	c.Enqueue(splits.SplitIce)
	require.Eventually(t, func() bool { return f.count(LineGetSplitName) == 3 }, waitFor, tick)
	assert.Equal(t, splits.SplitFinal, c.Expected())
	sent := len(f.received())

	c.Enqueue(splits.SplitFinal)
	require.Eventually(t, func() bool { return c.Phase() == PhaseEnded }, waitFor, tick)

	assert.Equal(t, []string{LineSplit, LineGetTimerPhase}, f.received()[sent:])
}

func TestClient_ResetSkippedWhenNotRunning(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())
	c.SetSyncTime(5)

	c.Enqueue(splits.Reset)
	flush(t, c, f)

	assert.Zero(t, f.count(LineReset))
	assert.Equal(t, float32(0), c.SyncTime())
}

func TestClient_ResetWhenRunningOrPaused(t *testing.T) {
	for _, phase := range []string{"Running", "Paused"} {
		t.Run(phase, func(t *testing.T) {
			f := newFakeTimer()
			c := connected(t, f, testConfig())
			f.setPhase(phase)

			c.Enqueue(splits.Reset)
			require.Eventually(t, func() bool { return f.count(LineReset) == 1 }, waitFor, tick)
			flush(t, c, f)
			require.Eventually(t, func() bool { return c.Phase() == PhaseNotRunning }, waitFor, tick)
		})
	}
}

func TestClient_PauseAndUnpause(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	c.Enqueue(splits.Pause)
	c.Enqueue(splits.Unpause)
	flush(t, c, f)

	assert.Equal(t, 1, f.count(LinePauseGameTime))
	assert.Equal(t, 1, f.count(LineUnpauseGameTime))
}

func TestClient_TimeSync(t *testing.T) {
	f := newFakeTimer()
	cfg := testConfig()
	cfg.SyncInterval = 0
	c := connected(t, f, cfg)

	c.SetSyncTime(3.5)
	require.Eventually(t, func() bool { return f.count("setgametime 3.5") == 1 }, waitFor, tick)

	// Unchanged time is not resent.
	time.Sleep(4 * syncPoll)
	assert.Equal(t, 1, f.count("setgametime 3.5"))
}

func TestClient_NoTimeSyncAfterRunEnded(t *testing.T) {
	f := newFakeTimer()
	cfg := testConfig()
	cfg.SyncInterval = 0
	c := connected(t, f, cfg)
	f.setPhase("Ended")
	flush(t, c, f)
	require.Eventually(t, func() bool { return c.Phase() == PhaseEnded }, waitFor, tick)

	c.SetSyncTime(9)
	time.Sleep(4 * syncPoll)

	assert.Zero(t, f.count("setgametime 9"))
}

func TestClient_TimeSyncThrottled(t *testing.T) {
	f := newFakeTimer()
	vc := clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := testConfig()
	cfg.SyncInterval = 10 * time.Second
	c := connected(t, f, cfg, WithClock(vc))

	c.SetSyncTime(1)
	time.Sleep(4 * syncPoll)
	assert.Zero(t, f.count("setgametime 1"))

	vc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return f.count("setgametime 1") == 1 }, waitFor, tick)

	c.SetSyncTime(2)
	time.Sleep(4 * syncPoll)
	assert.Zero(t, f.count("setgametime 2"))

	vc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return f.count("setgametime 2") == 1 }, waitFor, tick)
}

func TestClient_UnknownReplyAssumesFinal(t *testing.T) {
	c := New(TCPDialer("127.0.0.1:1"), testConfig())

	c.handleLine("Bonus Level")
	assert.Equal(t, splits.SplitFinal, c.Expected())

	c.handleLine("-")
	assert.Equal(t, splits.SplitFinal, c.Expected())

	c.handleLine("Pool")
	assert.Equal(t, splits.SplitPool, c.Expected())
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	f.dropConnections()

	require.Eventually(t, func() bool { return f.accepts.Load() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return f.count(LineGetTimerPhase) == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return c.Status() == Connected }, waitFor, tick)
}

// flakyDialer fails a fixed number of times before dialing through.
type flakyDialer struct {
	Dialer
	failures int32
	attempts atomic.Int32
}

func (d *flakyDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	if d.attempts.Add(1) <= d.failures {
		return nil, errors.New("connection refused")
	}
	return d.Dialer.Dial(ctx)
}

func TestClient_BacksOffUntilTimerAppears(t *testing.T) {
	f := newFakeTimer()
	d := &flakyDialer{Dialer: TCPDialer(f.listen(t)), failures: 3}

	var mu sync.Mutex
	var statuses []Status
	c := startClient(t, d, testConfig(), WithObserver(func(e Event) {
		if e.Kind == EventStatus {
			mu.Lock()
			statuses = append(statuses, e.Status)
			mu.Unlock()
		}
	}))

	require.Eventually(t, func() bool { return c.Status() == Connected }, waitFor, tick)
	assert.Equal(t, int32(4), d.attempts.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{
		Connecting, Disconnected,
		Connecting, Disconnected,
		Connecting, Disconnected,
		Connecting, Connected,
	}, statuses)
}

func TestClient_BackoffWaitsOnClock(t *testing.T) {
	f := newFakeTimer()
	d := &flakyDialer{Dialer: TCPDialer(f.listen(t)), failures: 2}
	vc := clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	cfg := testConfig()
	cfg.BackoffInitial = 2 * time.Second
	cfg.BackoffStep = 2 * time.Second
	cfg.BackoffMax = 10 * time.Second
	c := startClient(t, d, cfg, WithClock(vc))

	waiting := func(attempts int32) func() bool {
		return func() bool { return d.attempts.Load() == attempts && vc.Waiters() == 1 }
	}
	require.Eventually(t, waiting(1), waitFor, tick)

	vc.Advance(time.Second)
	assert.Never(t, func() bool { return d.attempts.Load() > 1 }, 50*time.Millisecond, tick)

	vc.Advance(time.Second)
	require.Eventually(t, waiting(2), waitFor, tick)

	// The second wait is one step longer.
	vc.Advance(2 * time.Second)
	assert.Never(t, func() bool { return d.attempts.Load() > 2 }, 50*time.Millisecond, tick)

	vc.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return c.Status() == Connected }, waitFor, tick)
	assert.Equal(t, int32(3), d.attempts.Load())
}

func TestNextBackoff(t *testing.T) {
	cur := time.Second
	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, cur)
		cur = nextBackoff(cur, 2*time.Second, 10*time.Second)
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second, 3 * time.Second, 5 * time.Second, 7 * time.Second,
		9 * time.Second, 10 * time.Second, 10 * time.Second,
	}, got)
}

func TestClient_EnqueueDropsWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 2

	var dropped atomic.Int32
	c := New(TCPDialer("127.0.0.1:1"), cfg, WithObserver(func(e Event) {
		if e.Kind == EventDropped {
			dropped.Add(1)
		}
	}))

	assert.True(t, c.Enqueue(splits.SplitIntro))
	assert.True(t, c.Enqueue(splits.SplitJungle))
	assert.False(t, c.Enqueue(splits.SplitGears))
	assert.Equal(t, 2, c.Pending())
	assert.Equal(t, int32(1), dropped.Load())
}

func TestClient_ConnectDiscardsStaleQueue(t *testing.T) {
	f := newFakeTimer()
	addr := f.listen(t)
	c := New(TCPDialer(addr), testConfig())
	c.Enqueue(splits.Pause)
	c.Enqueue(splits.Pause)

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Close() })
	require.Eventually(t, func() bool { return f.count(LineGetTimerPhase) == 1 }, waitFor, tick)
	flush(t, c, f)

	assert.Zero(t, f.count(LinePauseGameTime))
}

func TestClient_StartTwice(t *testing.T) {
	c := startClient(t, TCPDialer("127.0.0.1:1"), testConfig())
	assert.Error(t, c.Start(context.Background()))
}

func TestClient_Close(t *testing.T) {
	f := newFakeTimer()
	c := connected(t, f, testConfig())

	require.NoError(t, c.Close())
	assert.Equal(t, Disconnected, c.Status())
	assert.NoError(t, New(TCPDialer("127.0.0.1:1"), testConfig()).Close())
}

func TestClient_LineFeedEnding(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, len(LineGetSplitName)+2)
		n, _ := io.ReadAtLeast(conn, buf, len(LineGetSplitName)+1)
		got <- string(buf[:n])
	}()

	cfg := testConfig()
	cfg.LineEnding = "lf"
	startClient(t, TCPDialer(ln.Addr().String()), cfg)

	select {
	case s := <-got:
		assert.True(t, strings.HasPrefix(s, LineGetSplitName+"\n"), "got %q", s)
	case <-time.After(waitFor):
		t.Fatal("no bytes received")
	}
}

func TestClient_WebSocketTransport(t *testing.T) {
	f := newFakeTimer()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.serve(NewWebSocketStream(conn))
	}))
	defer srv.Close()

	d := &WebSocketDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	c := startClient(t, d, testConfig())

	require.Eventually(t, func() bool { return c.Phase() == PhaseNotRunning }, waitFor, tick)
	c.Enqueue(splits.StartTimer)
	require.Eventually(t, func() bool { return c.Expected() == splits.SplitIntro }, waitFor, tick)
	assert.Equal(t, 1, f.count(LineStartTimer))
}
