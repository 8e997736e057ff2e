package splits

import (
	"fmt"
	"strings"
)

// Command is a request for the split timer. The values from StartTimer to
// Reset double as the ordered phases of a run.
type Command int

const (
	StartTimer Command = iota
	SplitIntro
	SplitJungle
	SplitGears
	SplitPool
	SplitConstruction
	SplitCave
	SplitIce
	SplitFinal
	Reset

	// Commands below carry no run phase.
	Pause
	Unpause
	UpdateStatus
)

var commandNames = [...]string{
	StartTimer:        "start",
	SplitIntro:        "intro",
	SplitJungle:       "jungle",
	SplitGears:        "gears",
	SplitPool:         "pool",
	SplitConstruction: "construction",
	SplitCave:         "cave",
	SplitIce:          "ice",
	SplitFinal:        "final",
	Reset:             "reset",
	Pause:             "pause",
	Unpause:           "unpause",
	UpdateStatus:      "status",
}

func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return commandNames[c]
}

// IsSplit reports whether c is one of the intermediate splits, Intro
// through Ice.
func (c Command) IsSplit() bool {
	return c >= SplitIntro && c <= SplitIce
}

// ParseCommand looks a command up by its String form.
func ParseCommand(s string) (Command, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range commandNames {
		if name == s {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// DefaultSplitNames are the segment names the timer reports, in split
// order from Intro to the final split.
var DefaultSplitNames = []string{"Intro", "Jungle", "Gears", "Pool", "Construction", "Cave", "Ice", "Ending"}
