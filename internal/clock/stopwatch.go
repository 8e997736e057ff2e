package clock

import (
	"sync"
	"time"
)

// Stopwatch measures run time against a Clock. It can be paused and
// resumed; Elapsed includes the current running segment.
type Stopwatch struct {
	mu      sync.Mutex
	clock   Clock
	started time.Time
	total   time.Duration
	running bool
}

// NewStopwatch creates a stopped stopwatch reading zero.
func NewStopwatch(c Clock) *Stopwatch {
	if c == nil {
		c = NewRealClock()
	}
	return &Stopwatch{clock: c}
}

// Start resumes the stopwatch. Starting a running stopwatch is a no-op.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.started = s.clock.Now()
	s.running = true
}

// Stop pauses the stopwatch, keeping the accumulated time.
func (s *Stopwatch) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.total += s.clock.Since(s.started)
	s.running = false
}

// Reset stops the stopwatch and clears it.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.running = false
}

// Restart clears the stopwatch and starts it again.
func (s *Stopwatch) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.started = s.clock.Now()
	s.running = true
}

// Running reports whether the stopwatch is counting.
func (s *Stopwatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Elapsed returns the accumulated time.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.total + s.clock.Since(s.started)
	}
	return s.total
}
