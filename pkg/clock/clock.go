package clock

import (
	"time"

	internalclock "github.com/SmitUplenchwar2687/splitghost/internal/clock"
)

// Clock abstracts time so recordings and timer syncing work with both real
// and virtual time.
type Clock = internalclock.Clock

// RealClock delegates to the standard time package.
type RealClock = internalclock.RealClock

// VirtualClock is a controllable clock for deterministic playback.
type VirtualClock = internalclock.VirtualClock

// Stopwatch measures run time against a Clock.
type Stopwatch = internalclock.Stopwatch

// NewRealClock creates a real wall-clock implementation.
func NewRealClock() *RealClock {
	return internalclock.NewRealClock()
}

// NewVirtualClock creates a virtual clock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return internalclock.NewVirtualClock(start)
}

// NewStopwatch creates a stopped stopwatch reading c.
func NewStopwatch(c Clock) *Stopwatch {
	return internalclock.NewStopwatch(c)
}
