package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
)

// Runner drives one or more Players on a fixed tick against a virtual
// clock, optionally pacing the ticks to wall-clock time.
type Runner struct {
	players []*Player
	clock   *clock.VirtualClock
	step    time.Duration
	speed   float64 // 1.0 = real-time, 10.0 = 10x, 0 = instant
}

// Frame describes the state of one player after a tick.
type Frame struct {
	Player  int       `json:"player"`
	Index   int       `json:"index"`
	Elapsed float32   `json:"elapsed"`
	Looped  bool      `json:"looped"`
	Time    time.Time `json:"time"` // virtual time of the tick
}

// Summary aggregates a run.
type Summary struct {
	Ticks        int           `json:"ticks"`
	Loops        []int         `json:"loops"`         // per player
	Duration     time.Duration `json:"duration"`      // virtual time span
	WallDuration time.Duration `json:"wall_duration"` // actual wall clock time
}

// NewRunner creates a runner ticking every step of virtual time.
func NewRunner(vc *clock.VirtualClock, step time.Duration, speed float64, players ...*Player) *Runner {
	if speed < 0 {
		speed = 0
	}
	return &Runner{
		players: players,
		clock:   vc,
		step:    step,
		speed:   speed,
	}
}

// Run ticks every player until length of virtual time has been played or
// ctx is cancelled. The callback is called for each player on every tick.
func (r *Runner) Run(ctx context.Context, length time.Duration, cb func(Frame)) (*Summary, error) {
	if len(r.players) == 0 {
		return nil, fmt.Errorf("no players to run")
	}
	if r.step <= 0 {
		return nil, fmt.Errorf("tick step must be positive, got %s", r.step)
	}

	summary := &Summary{Loops: make([]int, len(r.players))}
	wallStart := time.Now()
	virtualStart := r.clock.Now()
	dt := float32(r.step.Seconds())

	for played := time.Duration(0); played < length; played += r.step {
		select {
		case <-ctx.Done():
			summary.Duration = r.clock.Since(virtualStart)
			summary.WallDuration = time.Since(wallStart)
			return summary, ctx.Err()
		default:
		}

		if r.speed > 0 {
			// Sleep for scaled wall-clock time for visual effect.
			scaled := time.Duration(float64(r.step) / r.speed)
			if scaled > time.Millisecond {
				select {
				case <-ctx.Done():
					summary.Duration = r.clock.Since(virtualStart)
					summary.WallDuration = time.Since(wallStart)
					return summary, ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		r.clock.Advance(r.step)

		for i, p := range r.players {
			before := p.Elapsed()
			p.Advance(dt)
			looped := p.Elapsed() < before
			if looped {
				summary.Loops[i]++
			}
			if cb != nil {
				cb(Frame{
					Player:  i,
					Index:   p.CurrentIndex(),
					Elapsed: p.Elapsed(),
					Looped:  looped,
					Time:    r.clock.Now(),
				})
			}
		}
		summary.Ticks++
	}

	summary.Duration = r.clock.Since(virtualStart)
	summary.WallDuration = time.Since(wallStart)
	return summary, nil
}
