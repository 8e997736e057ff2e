// Package world is the boundary between the replay core and the host
// engine. The core only sees these interfaces; the host adapts its own
// transform objects to them.
package world

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrNodeGone is returned by a Sampler whose underlying handle was destroyed.
var ErrNodeGone = errors.New("world: node no longer exists")

// PathSeparator joins node names into hierarchical paths.
const PathSeparator = "\n"

// Node is one element of the skeleton hierarchy as seen during enumeration.
type Node interface {
	Name() string
	Children() []Node
	// HasExcludedMarker reports whether this node and its subtree are
	// left out of recording (particle emitters and similar).
	HasExcludedMarker() bool
}

// Sampler reads the local transform of a tracked node.
type Sampler interface {
	LocalPosition() (mgl32.Vec3, error)
	LocalRotation() (mgl32.Quat, error)
}

// Target receives interpolated local transforms during playback.
type Target interface {
	SetLocalPosition(v mgl32.Vec3)
	SetLocalRotation(q mgl32.Quat)
}

// Root is the world-space anchor of a recorded or replayed body.
type Root interface {
	WorldPosition() mgl32.Vec3
	WorldRotation() mgl32.Quat
	SetWorldPosition(v mgl32.Vec3)
	SetWorldRotation(q mgl32.Quat)
}

// Tracked is an enumerated node with its hierarchical path.
type Tracked struct {
	Node Node
	Path string
}

// Enumerate walks the tree below root depth-first, parents before
// children, skipping excluded subtrees. The order is deterministic for a
// given hierarchy, which is what lets recorded indices be realigned later.
func Enumerate(root Node) []Tracked {
	var out []Tracked
	walk(root, "", &out)
	return out
}

func walk(n Node, parent string, out *[]Tracked) {
	if n == nil || n.HasExcludedMarker() {
		return
	}
	path := n.Name()
	if parent != "" {
		path = parent + PathSeparator + path
	}
	*out = append(*out, Tracked{Node: n, Path: path})
	for _, c := range n.Children() {
		walk(c, path, out)
	}
}

// Paths returns the path of every tracked node, in order.
func Paths(tracked []Tracked) []string {
	out := make([]string, len(tracked))
	for i, t := range tracked {
		out[i] = t.Path
	}
	return out
}

// Samplers returns the tracked nodes that can be sampled, in order. It
// fails if any tracked node does not implement Sampler.
func Samplers(tracked []Tracked) ([]Sampler, error) {
	out := make([]Sampler, len(tracked))
	for i, t := range tracked {
		s, ok := t.Node.(Sampler)
		if !ok {
			return nil, errors.New("world: tracked node " + t.Path + " cannot be sampled")
		}
		out[i] = s
	}
	return out, nil
}

// Targets returns the tracked nodes as playback targets. Nodes that do not
// implement Target are left nil and skipped by the player.
func Targets(tracked []Tracked) []Target {
	out := make([]Target, len(tracked))
	for i, t := range tracked {
		if tg, ok := t.Node.(Target); ok {
			out[i] = tg
		}
	}
	return out
}
