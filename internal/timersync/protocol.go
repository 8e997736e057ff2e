package timersync

import (
	"strconv"
	"strings"

	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
)

// Outgoing protocol lines, without terminator.
const (
	LineStartTimer      = "starttimer"
	LineSplit           = "split"
	LineSkipSplit       = "skipsplit"
	LineSetGameTime     = "setgametime"
	LinePauseGameTime   = "pausegametime"
	LineUnpauseGameTime = "unpausegametime"
	LineReset           = "reset"
	LineGetSplitName    = "getcurrentsplitname"
	LineGetTimerPhase   = "getcurrenttimerphase"
)

// Phase is the remote timer's state. PhaseNone means unknown.
type Phase int32

const (
	PhaseNone Phase = iota
	PhaseNotRunning
	PhaseRunning
	PhasePaused
	PhaseEnded
)

var phaseNames = [...]string{
	PhaseNone:       "None",
	PhaseNotRunning: "NotRunning",
	PhaseRunning:    "Running",
	PhasePaused:     "Paused",
	PhaseEnded:      "Ended",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "Phase(" + strconv.Itoa(int(p)) + ")"
	}
	return phaseNames[p]
}

// ParsePhase maps a phase name as reported by the timer.
func ParsePhase(s string) (Phase, bool) {
	for i, name := range phaseNames {
		if i != int(PhaseNone) && name == s {
			return Phase(i), true
		}
	}
	return PhaseNone, false
}

// LineTerminator returns the byte sequence ending each line for a
// configured line ending ("crlf" or "lf").
func LineTerminator(ending string) string {
	if strings.EqualFold(ending, "lf") {
		return "\n"
	}
	return "\r\n"
}

// FormatGameTime renders seconds the way the timer parses them: plain
// decimal, shortest form that round-trips a float32.
func FormatGameTime(t float32) string {
	return strconv.FormatFloat(float64(t), 'f', -1, 32)
}

// SetGameTime builds a setgametime line.
func SetGameTime(t float32) string {
	return LineSetGameTime + " " + FormatGameTime(t)
}

// ReplyKind classifies an incoming line.
type ReplyKind int

const (
	// ReplyIgnored is an empty line or a dash keep-alive.
	ReplyIgnored ReplyKind = iota
	// ReplySplit names the segment the timer is on.
	ReplySplit
	// ReplyPhase reports the timer phase.
	ReplyPhase
	// ReplyUnknown is anything else.
	ReplyUnknown
)

// Reply is a parsed incoming line.
type Reply struct {
	Kind  ReplyKind
	Split splits.Command
	Phase Phase
}

// ParseLine interprets one line from the timer. names are the segment
// names in split order; the n-th name means the timer expects
// SplitIntro+n next.
func ParseLine(line string, names []string) Reply {
	if len(line) == 0 || (len(line) <= 3 && line[0] == '-') {
		return Reply{Kind: ReplyIgnored}
	}
	text := strings.TrimSpace(line)
	if text == "" || text == "-" {
		return Reply{Kind: ReplyIgnored}
	}
	for i, name := range names {
		if name == text && splits.SplitIntro+splits.Command(i) <= splits.SplitFinal {
			return Reply{Kind: ReplySplit, Split: splits.SplitIntro + splits.Command(i)}
		}
	}
	if p, ok := ParsePhase(text); ok {
		return Reply{Kind: ReplyPhase, Phase: p}
	}
	return Reply{Kind: ReplyUnknown}
}
