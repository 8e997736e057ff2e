package splits

import "math"

// Thresholds are the world-space heights and offsets that complete each
// section. Grab thresholds compare against the height of the highest
// grabbed surface; the others against the body position.
type Thresholds struct {
	FinalY float32 `json:"final_y"`

	IceGrab float32 `json:"ice_grab"`
	IceY    float32 `json:"ice_y"`
	IceMaxX float32 `json:"ice_max_x"`

	CaveGrab float32 `json:"cave_grab"`
	CaveY    float32 `json:"cave_y"`

	ConstructionGrab float32 `json:"construction_grab"`
	ConstructionY    float32 `json:"construction_y"`

	PoolGrab float32 `json:"pool_grab"`
	PoolY    float32 `json:"pool_y"`
	PoolMaxX float32 `json:"pool_max_x"`

	GearsWaterY float32 `json:"gears_water_y"`
	GearsMinY   float32 `json:"gears_min_y"`
	GearsMaxY   float32 `json:"gears_max_y"`
	GearsMinX   float32 `json:"gears_min_x"`

	JungleGrab float32 `json:"jungle_grab"`
	JungleY    float32 `json:"jungle_y"`
	JungleMaxX float32 `json:"jungle_max_x"`

	IntroGrab float32 `json:"intro_grab"`
	IntroY    float32 `json:"intro_y"`

	// Below this height a fresh spawn counts as a real run start and skip
	// mode ends.
	SkipResetY float32 `json:"skip_reset_y"`
}

// DefaultThresholds returns the thresholds for the stock map.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FinalY:           240,
		IceGrab:          207,
		IceY:             204,
		IceMaxX:          47,
		CaveGrab:         154,
		CaveY:            152,
		ConstructionGrab: 137,
		ConstructionY:    135,
		PoolGrab:         112,
		PoolY:            109,
		PoolMaxX:         20,
		GearsWaterY:      83,
		GearsMinY:        80,
		GearsMaxY:        87,
		GearsMinX:        8,
		JungleGrab:       60,
		JungleY:          55,
		JungleMaxX:       0,
		IntroGrab:        33,
		IntroY:           31,
		SkipResetY:       15,
	}
}

// Observation is the climber state for one physics tick.
type Observation struct {
	X, Y     float32
	InWater  bool
	Grabbing bool
	// HighestGrab is the height of the highest surface either hand holds.
	// Ignored when Grabbing is false.
	HighestGrab float32
}

// Emission is a command produced by a phase transition. Skipped emissions
// happen right after a mid-level spawn and must not reach the timer.
type Emission struct {
	Command Command
	Skip    bool
}

// Options toggle how splits are detected.
type Options struct {
	// UseGrabSplits completes sections when a specific surface is grabbed
	// instead of when the body crosses a region.
	UseGrabSplits bool
	// UseInGameTime leaves the run start and the final split to the game's
	// own timer events.
	UseInGameTime bool
}

// spawnSkips is how many emissions are marked Skip after a spawn that
// did not start from the bottom of the map.
const spawnSkips = 2

// Generator turns a stream of observations into split commands. The phase
// only moves forward; each transition requires the current phase to be
// lower than the phase it leads to.
//
// It runs on the caller's update loop and is not safe for concurrent use.
type Generator struct {
	th       Thresholds
	opts     Options
	phase    Command
	skipMode int
}

// NewGenerator creates a generator waiting for the run to start.
func NewGenerator(th Thresholds, opts Options) *Generator {
	return &Generator{th: th, opts: opts, phase: StartTimer}
}

// Phase is the next phase the run is waiting to reach.
func (g *Generator) Phase() Command {
	return g.phase
}

// Options returns the detection options.
func (g *Generator) Options() Options {
	return g.opts
}

// Spawn resets the run for a freshly spawned climber and returns the
// command to send: UpdateStatus if the previous run was completed,
// otherwise Reset.
func (g *Generator) Spawn() Command {
	cmd := Reset
	if g.phase == Reset {
		cmd = UpdateStatus
	}
	g.phase = StartTimer
	g.skipMode = spawnSkips
	return cmd
}

// Observe evaluates one tick. It reports true when a transition produced
// a command.
func (g *Generator) Observe(o Observation) (Emission, bool) {
	th := &g.th
	if o.Y < th.SkipResetY {
		g.skipMode = 0
	}

	grab := float32(math.Inf(-1))
	if o.Grabbing {
		grab = o.HighestGrab
	}
	byGrab := g.opts.UseGrabSplits && g.skipMode <= 0
	pick := func(grabHit, posHit bool) bool {
		if byGrab {
			return grabHit
		}
		return posHit
	}

	switch {
	case o.Y > th.FinalY && o.InWater && !o.Grabbing && g.phase < Reset:
		return g.advance(Reset, SplitFinal, !g.opts.UseInGameTime)
	case g.phase < SplitFinal && pick(grab > th.IceGrab, o.Y > th.IceY && o.X < th.IceMaxX):
		return g.advance(SplitFinal, SplitIce, true)
	case g.phase < SplitIce && pick(grab > th.CaveGrab, o.Y > th.CaveY):
		return g.advance(SplitIce, SplitCave, true)
	case g.phase < SplitCave && pick(grab > th.ConstructionGrab, o.Y > th.ConstructionY):
		return g.advance(SplitCave, SplitConstruction, true)
	case g.phase < SplitConstruction && pick(grab > th.PoolGrab, o.Y > th.PoolY && o.X < th.PoolMaxX):
		return g.advance(SplitConstruction, SplitPool, true)
	case g.phase < SplitPool && pick(o.InWater && o.Y > th.GearsWaterY, o.Y > th.GearsMinY && o.Y < th.GearsMaxY && o.X > th.GearsMinX):
		return g.advance(SplitPool, SplitGears, true)
	case g.phase < SplitGears && pick(grab > th.JungleGrab, o.Y > th.JungleY && o.X < th.JungleMaxX):
		return g.advance(SplitGears, SplitJungle, true)
	case g.phase < SplitJungle && pick(grab > th.IntroGrab, o.Y > th.IntroY && (g.skipMode <= 0 || o.X > 0)):
		return g.advance(SplitJungle, SplitIntro, true)
	case g.phase < SplitIntro && o.Grabbing:
		return g.advance(SplitIntro, StartTimer, !g.opts.UseInGameTime)
	}
	return Emission{}, false
}

func (g *Generator) advance(next, cmd Command, emit bool) (Emission, bool) {
	g.phase = next
	if !emit {
		return Emission{}, false
	}
	e := Emission{Command: cmd}
	if g.skipMode > 0 {
		e.Skip = true
		g.skipMode--
	}
	return e, true
}
