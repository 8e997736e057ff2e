package generate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
	"github.com/SmitUplenchwar2687/splitghost/internal/session"
	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
)

const (
	// PatternClimb follows the whole course and finishes in the water at
	// the top.
	PatternClimb = "climb"
	// PatternFall climbs to the pool and falls back to the spawn.
	PatternFall = "fall"
	// PatternSway hangs at the spawn swinging the arms.
	PatternSway = "sway"
)

// Waypoint is a body position on the course.
type Waypoint struct {
	X, Y float32
}

// Course is a route through the stock map that passes every section in
// order under the default thresholds, by position and by grab.
var Course = []Waypoint{
	{0, 0},
	{-4, 60},
	{12, 84},
	{10, 120},
	{30, 160},
	{40, 210},
	{40, 246},
}

// grabReach is how far above the body the hands hold on.
const grabReach = 2

// Options controls how a synthetic run is generated.
type Options struct {
	Pattern string
	// Speed is the climbing speed in world units per second.
	Speed float32
	// Tick is the simulation step in seconds.
	Tick float32
	// Interval is the recording cadence; zero records every tick.
	Interval  float32
	SyncEvery int
	Version   string
	// Duration is the length of a sway run in seconds.
	Duration float32
	Seed     int64
}

// DefaultOptions returns defaults aligned with the CLI.
func DefaultOptions() Options {
	return Options{
		Pattern:   PatternClimb,
		Speed:     12,
		Tick:      0.05,
		SyncEvery: 200,
		Version:   "1",
		Duration:  10,
	}
}

// Run is a generated climb: the recorded replay and what the climber
// reported on every tick.
type Run struct {
	Replay       keyframe.ReplayFile
	Observations []splits.Observation
	Tick         float32
}

// GenerateRun simulates a climber on the humanoid skeleton and records it.
func GenerateRun(opts *Options) (*Run, error) {
	if opts == nil {
		return nil, fmt.Errorf("options are required")
	}
	o := *opts
	if o.Pattern == "" {
		o.Pattern = PatternClimb
	}
	if o.Tick <= 0 {
		return nil, fmt.Errorf("tick must be positive, got %g", o.Tick)
	}
	if o.Interval <= 0 {
		o.Interval = o.Tick
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}

	var path []Waypoint
	switch o.Pattern {
	case PatternClimb:
		path = Course
	case PatternFall:
		path = append(append([]Waypoint(nil), Course[:4]...), Course[0])
	case PatternSway:
		if o.Duration <= 0 {
			return nil, fmt.Errorf("duration must be positive, got %g", o.Duration)
		}
	default:
		return nil, fmt.Errorf("unknown pattern %q", o.Pattern)
	}
	if path != nil && o.Speed <= 0 {
		return nil, fmt.Errorf("speed must be positive, got %g", o.Speed)
	}

	var positions []Waypoint
	if path != nil {
		positions = walk(path, o.Speed*o.Tick)
	} else {
		positions = make([]Waypoint, int(math.Ceil(float64(o.Duration/o.Tick)))+1)
		for i := range positions {
			positions[i].X = 0.5 * float32(math.Sin(float64(i)*float64(o.Tick)))
		}
	}

	return record(o, positions)
}

func record(o Options, positions []Waypoint) (*Run, error) {
	rng := rand.New(rand.NewSource(o.Seed))
	swing := 0.6 + rng.Float32()*0.3
	offset := rng.Float32() * math.Pi

	armature := world.Humanoid()
	body := world.NewBody(mgl32.Vec3{})
	hips := armature.Find("Hips")
	upperL := armature.Find("UpperL")
	upperR := armature.Find("UpperR")
	lowerL := armature.Find("LowerL")
	lowerR := armature.Find("LowerR")

	rec := session.NewRecording(session.Config{
		Interval:  o.Interval,
		SyncEvery: o.SyncEvery,
		Version:   o.Version,
	}, nil)

	th := splits.DefaultThresholds()
	run := &Run{Tick: o.Tick, Observations: make([]splits.Observation, 0, len(positions))}
	ctx := context.Background()

	for i, p := range positions {
		phase := float64(i)*float64(o.Tick)*4 + float64(offset)
		a := swing * float32(math.Sin(phase))
		body.SetWorldPosition(mgl32.Vec3{p.X, p.Y, 0})
		if i > 0 {
			dx := p.X - positions[i-1].X
			body.SetWorldRotation(mgl32.QuatRotate(dx*0.2, mgl32.Vec3{0, 1, 0}))
		}
		hips.SetLocalPosition(mgl32.Vec3{0, 0.05 * float32(math.Abs(math.Sin(phase))), 0})
		upperL.SetLocalRotation(mgl32.QuatRotate(a, mgl32.Vec3{1, 0, 0}))
		upperR.SetLocalRotation(mgl32.QuatRotate(-a, mgl32.Vec3{1, 0, 0}))
		lowerL.SetLocalRotation(mgl32.QuatRotate(a/2, mgl32.Vec3{1, 0, 0}))
		lowerR.SetLocalRotation(mgl32.QuatRotate(-a/2, mgl32.Vec3{1, 0, 0}))

		if i == 0 {
			if err := rec.Start(body, armature); err != nil {
				return nil, err
			}
		} else if err := rec.Tick(ctx, o.Tick); err != nil {
			return nil, err
		}

		grabbing := p.Y <= th.FinalY
		run.Observations = append(run.Observations, splits.Observation{
			X:           p.X,
			Y:           p.Y,
			InWater:     p.Y > th.FinalY || (p.Y > th.GearsMinY && p.Y < th.GearsMaxY),
			Grabbing:    grabbing,
			HighestGrab: p.Y + grabReach,
		})
	}

	rf, _, err := rec.Stop(ctx, true)
	if err != nil {
		return nil, err
	}
	run.Replay = rf
	return run, nil
}

// walk samples path every step units of distance, always including both
// ends.
func walk(path []Waypoint, step float32) []Waypoint {
	out := []Waypoint{path[0]}
	carry := float32(0)
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := float32(math.Hypot(float64(dx), float64(dy)))
		d := step - carry
		for ; d <= length; d += step {
			f := d / length
			out = append(out, Waypoint{a.X + dx*f, a.Y + dy*f})
		}
		carry = length - (d - step)
	}
	if last := path[len(path)-1]; out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}
