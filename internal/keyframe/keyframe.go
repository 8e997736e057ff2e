package keyframe

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxNodes is the number of tracked nodes a single recording can address.
// Delta indices are stored in one byte.
const MaxNodes = 255

// PositionDelta is the local position of one tracked node.
type PositionDelta struct {
	Index    uint8
	Position mgl32.Vec3
}

// RotationDelta is the local rotation of one tracked node.
type RotationDelta struct {
	Index    uint8
	Rotation mgl32.Quat
}

// Keyframe is one sampled snapshot, or delta, of the tracked skeleton.
// A sync frame lists every tracked node; other frames only list nodes
// whose local transform changed since the previous sample.
type Keyframe struct {
	Time         float32
	BodyPosition mgl32.Vec3
	BodyRotation mgl32.Quat
	Positions    []PositionDelta
	Rotations    []RotationDelta
	SyncFrame    bool
}

// ReplayFile is a complete recording together with the hierarchical
// paths of the nodes it was recorded from.
type ReplayFile struct {
	Version   string
	Paths     []string
	Keyframes []Keyframe
}

// New builds a ReplayFile, enforcing the keyframe sequence invariants.
func New(version string, paths []string, keyframes []Keyframe) (ReplayFile, error) {
	if len(paths) > MaxNodes {
		return ReplayFile{}, &CapacityError{Nodes: len(paths)}
	}
	if err := Validate(keyframes); err != nil {
		return ReplayFile{}, err
	}
	return ReplayFile{
		Version:   version,
		Paths:     paths,
		Keyframes: keyframes,
	}, nil
}

// Validate checks that keyframes form a playable sequence: at least two
// frames, a second frame after time zero and strictly increasing times.
func Validate(keyframes []Keyframe) error {
	if len(keyframes) < 2 {
		return &InvalidReplayError{Reason: "need at least 2 keyframes"}
	}
	if keyframes[1].Time <= 0 {
		return &InvalidReplayError{Reason: "second keyframe must be after time 0"}
	}
	for i := 1; i < len(keyframes); i++ {
		if !(keyframes[i].Time > keyframes[i-1].Time) {
			return &InvalidReplayError{Reason: "keyframe times must be strictly increasing"}
		}
	}
	return nil
}

// Duration is the time of the final keyframe.
func (f ReplayFile) Duration() float32 {
	if len(f.Keyframes) == 0 {
		return 0
	}
	return f.Keyframes[len(f.Keyframes)-1].Time
}

// SyncFrames counts the full-snapshot keyframes.
func (f ReplayFile) SyncFrames() int {
	n := 0
	for _, kf := range f.Keyframes {
		if kf.SyncFrame {
			n++
		}
	}
	return n
}

// SameVec3 reports whether a and b have identical bit patterns.
func SameVec3(a, b mgl32.Vec3) bool {
	return math.Float32bits(a[0]) == math.Float32bits(b[0]) &&
		math.Float32bits(a[1]) == math.Float32bits(b[1]) &&
		math.Float32bits(a[2]) == math.Float32bits(b[2])
}

// SameQuat reports whether a and b have identical bit patterns.
func SameQuat(a, b mgl32.Quat) bool {
	return math.Float32bits(a.W) == math.Float32bits(b.W) && SameVec3(a.V, b.V)
}
