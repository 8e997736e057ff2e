package replay

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
)

// Player drives a set of target nodes through a recorded keyframe
// sequence, interpolating between samples and looping at the end.
//
// A Player is driven from a single update loop and is not safe for
// concurrent use.
type Player struct {
	root      world.Root
	targets   []world.Target
	keyframes []keyframe.Keyframe

	index   int
	elapsed float32

	// Baseline transforms as of keyframes[index], indexed like targets.
	positions []mgl32.Vec3
	rotations []mgl32.Quat
}

// New creates a Player positioned at the first keyframe. targets is
// indexed by recorded node index; nil entries and indices past the end
// are skipped. root may be nil.
func New(root world.Root, targets []world.Target, keyframes []keyframe.Keyframe) (*Player, error) {
	if err := keyframe.Validate(keyframes); err != nil {
		return nil, err
	}
	p := &Player{
		root:      root,
		targets:   targets,
		keyframes: keyframes,
		positions: make([]mgl32.Vec3, len(targets)),
		rotations: make([]mgl32.Quat, len(targets)),
	}
	p.Reset()
	return p, nil
}

// Reset rewinds to the first keyframe and applies it.
func (p *Player) Reset() {
	p.restart(0)
	p.elapsed = 0
	p.interpolate()
}

// Advance moves playback forward by dt seconds. Reaching the final
// keyframe wraps around to the start, keeping the remainder, so the
// replay loops. Every keyframe passed is applied in order before the
// bracketing pair is interpolated.
func (p *Player) Advance(dt float32) {
	if dt < 0 {
		p.JumpTo(p.elapsed + dt)
		return
	}
	p.elapsed += dt
	if d := p.Duration(); p.elapsed >= d {
		p.elapsed = wrap(p.elapsed, d)
		p.restart(0)
	}
	for p.index+2 < len(p.keyframes) && p.keyframes[p.index+1].Time <= p.elapsed {
		p.index++
		p.apply(p.index)
	}
	p.interpolate()
}

// JumpTo seeks to time t, wrapped into [0, Duration). Playback restarts
// from the latest sync frame at or before the target keyframe and
// replays forward from there.
func (p *Player) JumpTo(t float32) {
	t = wrap(t, p.Duration())

	target := 0
	for i := 1; i+1 < len(p.keyframes); i++ {
		if p.keyframes[i].Time > t {
			break
		}
		target = i
	}

	start := 0
	for i := target; i > 0; i-- {
		if p.keyframes[i].SyncFrame {
			start = i
			break
		}
	}

	p.restart(start)
	p.elapsed = t
	p.Advance(0)
}

// CurrentIndex is the index of the keyframe at or before the current time.
func (p *Player) CurrentIndex() int {
	return p.index
}

// Elapsed is the current playback time in seconds.
func (p *Player) Elapsed() float32 {
	return p.elapsed
}

// Duration is the time of the final keyframe.
func (p *Player) Duration() float32 {
	return p.keyframes[len(p.keyframes)-1].Time
}

// restart clears the baseline and applies keyframes[i] on top of it.
func (p *Player) restart(i int) {
	for n := range p.positions {
		p.positions[n] = mgl32.Vec3{}
		p.rotations[n] = mgl32.QuatIdent()
	}
	p.index = i
	p.apply(i)
}

// apply writes the absolute values listed in keyframes[i] to the
// baseline and to the targets.
func (p *Player) apply(i int) {
	kf := &p.keyframes[i]
	for _, d := range kf.Positions {
		t := p.target(d.Index)
		if t == nil {
			continue
		}
		p.positions[d.Index] = d.Position
		t.SetLocalPosition(d.Position)
	}
	for _, d := range kf.Rotations {
		t := p.target(d.Index)
		if t == nil {
			continue
		}
		p.rotations[d.Index] = d.Rotation
		t.SetLocalRotation(d.Rotation)
	}
}

// interpolate blends from the baseline toward the next keyframe. Only the
// root and the nodes listed in that keyframe move.
func (p *Player) interpolate() {
	from := &p.keyframes[p.index]
	to := &p.keyframes[p.index+1]
	f := fraction(from.Time, to.Time, p.elapsed)

	if p.root != nil {
		p.root.SetWorldPosition(lerp(from.BodyPosition, to.BodyPosition, f))
		p.root.SetWorldRotation(mgl32.QuatSlerp(from.BodyRotation, to.BodyRotation, f))
	}
	for _, d := range to.Positions {
		if t := p.target(d.Index); t != nil {
			t.SetLocalPosition(lerp(p.positions[d.Index], d.Position, f))
		}
	}
	for _, d := range to.Rotations {
		if t := p.target(d.Index); t != nil {
			t.SetLocalRotation(mgl32.QuatSlerp(p.rotations[d.Index], d.Rotation, f))
		}
	}
}

func (p *Player) target(i uint8) world.Target {
	if int(i) >= len(p.targets) {
		return nil
	}
	return p.targets[i]
}

func lerp(a, b mgl32.Vec3, f float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(f))
}

// fraction is the clamped inverse lerp of t between a and b.
func fraction(a, b, t float32) float32 {
	if b <= a {
		return 0
	}
	f := (t - a) / (b - a)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// wrap maps t into [0, d).
func wrap(t, d float32) float32 {
	r := float32(math.Mod(float64(t), float64(d)))
	if r < 0 {
		r += d
	}
	if r >= d {
		r = 0
	}
	return r
}
