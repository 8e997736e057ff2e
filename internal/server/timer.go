package server

import (
	"strconv"
	"strings"
	"sync"

	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
	"github.com/SmitUplenchwar2687/splitghost/internal/timersync"
)

// Timer is an in-memory split timer that answers the line protocol the
// way a LiveSplit server does.
type Timer struct {
	mu             sync.Mutex
	names          []string
	phase          timersync.Phase
	index          int
	gameTime       float64
	gameTimePaused bool
	attempts       int
	completed      int
	received       []string
}

// TimerState is a snapshot of a Timer.
type TimerState struct {
	Phase          string  `json:"phase"`
	SplitIndex     int     `json:"split_index"`
	SplitName      string  `json:"split_name"`
	GameTime       float64 `json:"game_time"`
	GameTimePaused bool    `json:"game_time_paused"`
	Attempts       int     `json:"attempts"`
	Completed      int     `json:"completed"`
	Received       int     `json:"received"`
}

// NewTimer creates a stopped timer with the given segment names.
func NewTimer(names []string) *Timer {
	if len(names) == 0 {
		names = splits.DefaultSplitNames
	}
	return &Timer{
		names: append([]string(nil), names...),
		phase: timersync.PhaseNotRunning,
	}
}

// Handle applies one protocol line and returns the reply lines.
// Unrecognised lines are recorded and ignored; the bool reports whether
// the line was understood.
func (t *Timer) Handle(line string) ([]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line = strings.TrimSpace(line)
	t.received = append(t.received, line)
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case timersync.LineStartTimer:
		if t.phase == timersync.PhaseNotRunning {
			t.phase = timersync.PhaseRunning
			t.index = 0
			t.gameTime = 0
			t.attempts++
		}
	case timersync.LineSplit:
		if t.running() {
			t.index++
			if t.index >= len(t.names) {
				t.index = len(t.names) - 1
				t.phase = timersync.PhaseEnded
				t.completed++
			}
		}
	case timersync.LineSkipSplit:
		if t.running() && t.index < len(t.names)-1 {
			t.index++
		}
	case "unsplit":
		if t.phase == timersync.PhaseEnded {
			t.phase = timersync.PhaseRunning
			t.completed--
		} else if t.running() && t.index > 0 {
			t.index--
		}
	case timersync.LineReset:
		t.phase = timersync.PhaseNotRunning
		t.index = 0
		t.gameTimePaused = false
	case "pause":
		if t.phase == timersync.PhaseRunning {
			t.phase = timersync.PhasePaused
		}
	case "resume":
		if t.phase == timersync.PhasePaused {
			t.phase = timersync.PhaseRunning
		}
	case timersync.LinePauseGameTime:
		t.gameTimePaused = true
	case timersync.LineUnpauseGameTime:
		t.gameTimePaused = false
	case timersync.LineSetGameTime:
		v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			return nil, false
		}
		t.gameTime = v
	case timersync.LineGetSplitName:
		if !t.running() {
			return []string{"-"}, true
		}
		return []string{t.names[t.index]}, true
	case timersync.LineGetTimerPhase:
		return []string{t.phase.String()}, true
	case "getsplitindex":
		if t.phase == timersync.PhaseNotRunning {
			return []string{"-1"}, true
		}
		return []string{strconv.Itoa(t.index)}, true
	case "getcurrentgametime":
		return []string{strconv.FormatFloat(t.gameTime, 'f', 3, 64)}, true
	default:
		return nil, false
	}
	return nil, true
}

func (t *Timer) running() bool {
	return t.phase == timersync.PhaseRunning || t.phase == timersync.PhasePaused
}

// State returns a snapshot of the timer.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := TimerState{
		Phase:          t.phase.String(),
		SplitIndex:     t.index,
		GameTime:       t.gameTime,
		GameTimePaused: t.gameTimePaused,
		Attempts:       t.attempts,
		Completed:      t.completed,
		Received:       len(t.received),
	}
	if t.running() || t.phase == timersync.PhaseEnded {
		s.SplitName = t.names[t.index]
	}
	if t.phase == timersync.PhaseNotRunning {
		s.SplitIndex = -1
	}
	return s
}

// Received returns every line handled so far, in order.
func (t *Timer) Received() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.received...)
}
