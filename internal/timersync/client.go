package timersync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
)

const (
	defaultQueueSize       = 64
	defaultAckTimeout      = 2 * time.Second
	defaultSyncInterval    = 10 * time.Second
	defaultBackoffInitial  = 1 * time.Second
	defaultBackoffStep     = 2 * time.Second
	defaultBackoffMax      = 10 * time.Second
	defaultShutdownTimeout = 1 * time.Second

	// syncPoll is how often an idle connection checks for a pending time sync.
	syncPoll = 50 * time.Millisecond
	// replyBuffer bounds lines held for a pending query.
	replyBuffer = 32
)

// Config tunes the client. Zero fields take their defaults.
type Config struct {
	LineEnding      string
	UseInGameTime   bool
	SplitNames      []string
	QueueSize       int
	AckTimeout      time.Duration
	SyncInterval    time.Duration
	BackoffInitial  time.Duration
	BackoffStep     time.Duration
	BackoffMax      time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		LineEnding:      "crlf",
		UseInGameTime:   true,
		SplitNames:      append([]string(nil), splits.DefaultSplitNames...),
		QueueSize:       defaultQueueSize,
		AckTimeout:      defaultAckTimeout,
		SyncInterval:    defaultSyncInterval,
		BackoffInitial:  defaultBackoffInitial,
		BackoffStep:     defaultBackoffStep,
		BackoffMax:      defaultBackoffMax,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.LineEnding == "" {
		cfg.LineEnding = def.LineEnding
	}
	if len(cfg.SplitNames) == 0 {
		cfg.SplitNames = def.SplitNames
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = def.AckTimeout
	}
	if cfg.SyncInterval < 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = def.BackoffInitial
	}
	if cfg.BackoffStep < 0 {
		cfg.BackoffStep = def.BackoffStep
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return cfg
}

// Status is the connection state.
type Status int32

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Client keeps a connection to the split timer and forwards commands to
// it from a FIFO queue. All I/O happens on background goroutines;
// Enqueue and the state getters never block.
type Client struct {
	cfg      Config
	dialer   Dialer
	clock    clock.Clock
	log      logrus.FieldLogger
	observer func(Event)
	eol      string

	queue chan splits.Command

	status   atomic.Int32
	expected atomic.Int32
	phase    atomic.Int32
	syncTime atomic.Uint32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock sets the clock used for backoff waits, ack timeouts and sync
// throttling.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithObserver registers a callback for client events. It is called from
// the client's connection goroutines, never from Enqueue's caller except
// for EventDropped, and must not block.
func WithObserver(fn func(Event)) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// New creates a stopped client.
func New(dialer Dialer, cfg Config, opts ...Option) *Client {
	cfg = normalizeConfig(cfg)
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		cfg:    cfg,
		dialer: dialer,
		clock:  clock.NewRealClock(),
		log:    discard,
		eol:    LineTerminator(cfg.LineEnding),
		queue:  make(chan splits.Command, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithFields(logrus.Fields{"component": "timersync", "timer": dialer.String()})
	return c
}

// Start launches the background goroutine. It returns an error if the
// client is already running.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return errors.New("timersync: client already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
	return nil
}

// Close stops the background goroutine and waits for it to release the
// connection, giving up after the configured shutdown timeout.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(c.cfg.ShutdownTimeout):
		return fmt.Errorf("timersync: background loop did not stop within %s", c.cfg.ShutdownTimeout)
	}
}

// Enqueue queues cmd for the background goroutine. It never blocks: when
// the queue is full the command is dropped and false is returned.
func (c *Client) Enqueue(cmd splits.Command) bool {
	select {
	case c.queue <- cmd:
		return true
	default:
		c.log.WithField("command", cmd).Warn("command queue full, dropping command")
		c.emit(Event{Kind: EventDropped, Command: cmd})
		return false
	}
}

// Command records t as the current run time and queues cmd.
func (c *Client) Command(cmd splits.Command, t float32) bool {
	c.SetSyncTime(t)
	return c.Enqueue(cmd)
}

// SetSyncTime publishes the run time sent with the next time sync.
func (c *Client) SetSyncTime(t float32) {
	c.syncTime.Store(math.Float32bits(t))
}

// SyncTime is the last published run time.
func (c *Client) SyncTime() float32 {
	return math.Float32frombits(c.syncTime.Load())
}

// Status is the current connection state.
func (c *Client) Status() Status {
	return Status(c.status.Load())
}

// Expected is the split the timer is believed to be waiting for.
func (c *Client) Expected() splits.Command {
	return splits.Command(c.expected.Load())
}

// Phase is the last reported timer phase.
func (c *Client) Phase() Phase {
	return Phase(c.phase.Load())
}

// Pending is the number of queued commands.
func (c *Client) Pending() int {
	return len(c.queue)
}

func (c *Client) setStatus(s Status) {
	if Status(c.status.Swap(int32(s))) != s {
		c.emit(Event{Kind: EventStatus, Status: s})
	}
}

func (c *Client) emit(e Event) {
	if c.observer == nil {
		return
	}
	e.Time = c.clock.Now()
	if e.Kind != EventStatus {
		e.Status = c.Status()
	}
	c.observer(e)
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.setStatus(Disconnected)

	backoff := c.cfg.BackoffInitial
	for {
		if ctx.Err() != nil {
			return
		}

		c.setStatus(Connecting)
		conn, err := c.dialer.Dial(ctx)
		if err != nil {
			c.setStatus(Disconnected)
			if ctx.Err() != nil {
				return
			}
			c.log.WithError(&TransportError{Op: "dial", Err: err}).
				WithField("retry_in", backoff).
				Warn("timer unreachable")
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, c.cfg.BackoffStep, c.cfg.BackoffMax)
			continue
		}

		backoff = c.cfg.BackoffInitial
		c.log.Info("connected to timer")
		err = c.serve(ctx, conn)
		_ = conn.Close()
		c.setStatus(Disconnected)
		if ctx.Err() != nil {
			return
		}
		c.log.WithError(err).WithField("retry_in", backoff).Warn("timer connection lost")
		if !c.sleep(ctx, backoff) {
			return
		}
	}
}

// nextBackoff grows the reconnect wait by step, capped at max.
func nextBackoff(cur, step, max time.Duration) time.Duration {
	next := cur + step
	if next > max {
		return max
	}
	return next
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

// session is the per-connection state of the background goroutine.
type session struct {
	conn     io.ReadWriteCloser
	replies  chan string
	readErr  chan error
	lastSync float32
	syncedAt time.Time
}

func (c *Client) serve(ctx context.Context, conn io.ReadWriteCloser) error {
	s := &session{
		conn:     conn,
		replies:  make(chan string, replyBuffer),
		readErr:  make(chan error, 1),
		syncedAt: c.clock.Now(),
	}
	go c.readLoop(conn, s.replies, s.readErr)

	c.setStatus(Connected)
	if n := c.drainQueue(); n > 0 {
		c.log.WithField("dropped", n).Debug("discarded commands queued while disconnected")
	}
	if err := c.query(ctx, s, LineGetSplitName, nil); err != nil {
		return err
	}
	if err := c.query(ctx, s, LineGetTimerPhase, nil); err != nil {
		return err
	}

	ticker := time.NewTicker(syncPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.readErr:
			return &TransportError{Op: "read", Err: err}
		case cmd := <-c.queue:
			if err := c.process(ctx, s, cmd); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.maybeSync(s); err != nil {
				return err
			}
		}
	}
}

func (c *Client) drainQueue() int {
	n := 0
	for {
		select {
		case <-c.queue:
			n++
		default:
			return n
		}
	}
}

func (c *Client) readLoop(r io.Reader, replies chan<- string, readErr chan<- error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		c.handleLine(line)
		select {
		case replies <- line:
		default:
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	readErr <- err
}

// handleLine applies one incoming line to the shared state.
func (c *Client) handleLine(line string) {
	reply := ParseLine(line, c.cfg.SplitNames)
	switch reply.Kind {
	case ReplyIgnored:
		return
	case ReplySplit:
		c.expected.Store(int32(reply.Split))
	case ReplyPhase:
		c.phase.Store(int32(reply.Phase))
	case ReplyUnknown:
		c.log.WithField("line", line).Warn("unrecognised timer reply, assuming final split")
		c.expected.Store(int32(splits.SplitFinal))
	}
	c.log.WithField("line", line).Debug("timer reply")
	c.emit(Event{Kind: EventReceived, Line: line})
}

// process forwards one queued command.
func (c *Client) process(ctx context.Context, s *session, cmd splits.Command) error {
	switch cmd {
	case splits.StartTimer:
		return c.query(ctx, s, LineGetSplitName, nil, LineStartTimer)
	case splits.SplitFinal:
		return c.finalSplit(ctx, s)
	case splits.Reset:
		c.SetSyncTime(0)
		return c.resetIfRunning(ctx, s)
	case splits.UpdateStatus:
		return c.query(ctx, s, LineGetTimerPhase, nil)
	case splits.Pause:
		return c.write(s, LinePauseGameTime)
	case splits.Unpause:
		return c.write(s, LineUnpauseGameTime)
	}

	if !cmd.IsSplit() {
		c.log.WithField("command", cmd).Warn("ignoring command with no timer mapping")
		return nil
	}

	expected := c.Expected()
	if cmd < expected || expected == splits.StartTimer {
		c.log.WithFields(logrus.Fields{"command": cmd, "expected": expected}).Debug("suppressing split")
		c.emit(Event{Kind: EventSuppressed, Command: cmd})
		return nil
	}

	lines := make([]string, 0, int(cmd-expected)+1)
	for e := expected; e < cmd; e++ {
		lines = append(lines, LineSkipSplit)
	}
	lines = append(lines, LineSplit)
	c.expected.Store(int32(cmd + 1))
	return c.query(ctx, s, LineGetSplitName, nil, lines...)
}

func (c *Client) finalSplit(ctx context.Context, s *session) error {
	defer c.expected.Store(int32(splits.StartTimer))

	var lines []string
	for e := c.Expected(); e < splits.SplitFinal; e++ {
		lines = append(lines, LineSkipSplit)
	}
	if c.cfg.UseInGameTime {
		t := c.SyncTime()
		c.log.WithField("time", FormatGameTime(t)).Info("final split")
		lines = append(lines, SetGameTime(t))
	}
	lines = append(lines, LineSplit)
	return c.query(ctx, s, LineGetTimerPhase, nil, lines...)
}

// resetIfRunning resets the timer only when it reports Running or Paused.
func (c *Client) resetIfRunning(ctx context.Context, s *session) error {
	c.phase.Store(int32(PhaseNone))
	known := func() bool { return c.Phase() != PhaseNone }
	if err := c.query(ctx, s, LineGetTimerPhase, known); err != nil {
		return err
	}
	switch c.Phase() {
	case PhaseRunning, PhasePaused:
		return c.write(s, LineReset)
	case PhaseNone:
		c.log.Warn("timer phase unknown, not resetting")
	}
	return nil
}

// maybeSync pushes the run time when nothing else is pending, it has
// changed, a sync interval has passed since connecting or the previous
// sync, and the run is not over.
func (c *Client) maybeSync(s *session) error {
	if len(c.queue) > 0 || c.Phase() == PhaseEnded {
		return nil
	}
	t := c.SyncTime()
	if math.Float32bits(t) == math.Float32bits(s.lastSync) {
		return nil
	}
	if c.clock.Since(s.syncedAt) < c.cfg.SyncInterval {
		return nil
	}
	if err := c.write(s, SetGameTime(t)); err != nil {
		return err
	}
	s.lastSync = t
	s.syncedAt = c.clock.Now()
	return nil
}

// query writes lines followed by q and waits for the answer. With a nil
// until any line counts as the answer. A missing answer is logged, not
// treated as a transport failure.
func (c *Client) query(ctx context.Context, s *session, q string, until func() bool, lines ...string) error {
	drainReplies(s.replies)
	if err := c.write(s, append(lines, q)...); err != nil {
		return err
	}

	timeout := c.clock.After(c.cfg.AckTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.readErr:
			return &TransportError{Op: "read", Err: err}
		case <-s.replies:
			if until == nil || until() {
				return nil
			}
		case <-timeout:
			c.log.WithField("query", q).Warn("timer did not answer in time")
			return nil
		}
	}
}

func drainReplies(replies <-chan string) {
	for {
		select {
		case <-replies:
		default:
			return
		}
	}
}

func (c *Client) write(s *session, lines ...string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(c.eol)
	}
	if _, err := io.WriteString(s.conn, b.String()); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	for _, l := range lines {
		c.log.WithField("line", l).Debug("sent to timer")
		c.emit(Event{Kind: EventSent, Line: l})
	}
	return nil
}
