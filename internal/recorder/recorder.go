package recorder

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
)

// ErrPurgeUnderflow is returned by PurgeAfter when no keyframe is at or
// before the requested time.
var ErrPurgeUnderflow = errors.New("recorder: no keyframe at or before purge time")

// SampleError reports a tracked node that could not be read. The keyframes
// recorded so far are intact and can still be flushed.
type SampleError struct {
	Index int
	Err   error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sampling tracked node %d: %v", e.Index, e.Err)
}

func (e *SampleError) Unwrap() error {
	return e.Err
}

// Recorder samples a fixed, ordered set of nodes and accumulates delta
// keyframes. It is owned by a single session and is not safe for
// concurrent use.
type Recorder struct {
	root      world.Root
	nodes     []world.Sampler
	positions []mgl32.Vec3
	rotations []mgl32.Quat
	keyframes []keyframe.Keyframe
	forceSync bool
}

// New snapshots nodes and records the initial sync keyframe at time 0.
func New(root world.Root, nodes []world.Sampler) (*Recorder, error) {
	if len(nodes) > keyframe.MaxNodes {
		return nil, &keyframe.CapacityError{Nodes: len(nodes)}
	}
	r := &Recorder{
		root:      root,
		nodes:     append([]world.Sampler(nil), nodes...),
		positions: make([]mgl32.Vec3, len(nodes)),
		rotations: make([]mgl32.Quat, len(nodes)),
	}
	if err := r.RecordKeyframe(0, true); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordKeyframe samples every node at timestamp t. Only nodes whose local
// position or rotation differs bit-for-bit from the last sample are listed,
// unless forceSync is set, in which case all nodes are. Timestamps must not
// go backwards; that is not checked here.
func (r *Recorder) RecordKeyframe(t float32, forceSync bool) error {
	sync := forceSync || r.forceSync

	positions := make([]mgl32.Vec3, len(r.nodes))
	rotations := make([]mgl32.Quat, len(r.nodes))
	for i, n := range r.nodes {
		p, err := n.LocalPosition()
		if err != nil {
			return &SampleError{Index: i, Err: err}
		}
		q, err := n.LocalRotation()
		if err != nil {
			return &SampleError{Index: i, Err: err}
		}
		positions[i], rotations[i] = p, q
	}

	kf := keyframe.Keyframe{Time: t, SyncFrame: sync}
	if r.root != nil {
		kf.BodyPosition = r.root.WorldPosition()
		kf.BodyRotation = r.root.WorldRotation()
	}
	for i := range r.nodes {
		if sync || !keyframe.SameVec3(r.positions[i], positions[i]) {
			kf.Positions = append(kf.Positions, keyframe.PositionDelta{Index: uint8(i), Position: positions[i]})
		}
		if sync || !keyframe.SameQuat(r.rotations[i], rotations[i]) {
			kf.Rotations = append(kf.Rotations, keyframe.RotationDelta{Index: uint8(i), Rotation: rotations[i]})
		}
	}

	r.positions, r.rotations = positions, rotations
	r.keyframes = append(r.keyframes, kf)
	r.forceSync = false
	return nil
}

// PurgeAfter drops every keyframe later than t, discarding history after a
// rollback. The next keyframe recorded afterwards is a sync frame, since
// the cached transforms no longer match the last kept keyframe.
func (r *Recorder) PurgeAfter(t float32) error {
	for i := len(r.keyframes) - 1; i >= 0; i-- {
		if r.keyframes[i].Time > t {
			continue
		}
		if i+1 < len(r.keyframes) {
			r.keyframes = r.keyframes[:i+1]
			r.forceSync = true
		}
		return nil
	}
	return ErrPurgeUnderflow
}

// Len returns the number of keyframes recorded.
func (r *Recorder) Len() int {
	return len(r.keyframes)
}

// NodeCount returns the number of tracked nodes.
func (r *Recorder) NodeCount() int {
	return len(r.nodes)
}

// LastTime returns the timestamp of the latest keyframe.
func (r *Recorder) LastTime() float32 {
	return r.keyframes[len(r.keyframes)-1].Time
}

// Keyframes returns a copy of the recorded keyframes.
func (r *Recorder) Keyframes() []keyframe.Keyframe {
	out := make([]keyframe.Keyframe, len(r.keyframes))
	copy(out, r.keyframes)
	return out
}

// Finish packages the keyframes recorded so far as a ReplayFile.
func (r *Recorder) Finish(version string, paths []string) (keyframe.ReplayFile, error) {
	if len(paths) != len(r.nodes) {
		return keyframe.ReplayFile{}, fmt.Errorf("recorder: %d paths for %d tracked nodes", len(paths), len(r.nodes))
	}
	return keyframe.New(version, append([]string(nil), paths...), r.Keyframes())
}
