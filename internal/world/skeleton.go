package world

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Bone is an in-memory skeleton node. It implements Node, Sampler and
// Target, and backs the synthetic generator, the CLI and tests.
type Bone struct {
	mu       sync.RWMutex
	name     string
	children []*Bone
	excluded bool
	gone     bool
	position mgl32.Vec3
	rotation mgl32.Quat
}

// NewBone creates a bone at the origin with identity rotation.
func NewBone(name string) *Bone {
	return &Bone{name: name, rotation: mgl32.QuatIdent()}
}

// Add attaches children and returns b for chaining.
func (b *Bone) Add(children ...*Bone) *Bone {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children = append(b.children, children...)
	return b
}

// Exclude marks b so that Enumerate skips it and its subtree.
func (b *Bone) Exclude() *Bone {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.excluded = true
	return b
}

// Destroy invalidates the bone; later samples fail with ErrNodeGone.
func (b *Bone) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gone = true
}

func (b *Bone) Name() string { return b.name }

func (b *Bone) Children() []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Node, len(b.children))
	for i, c := range b.children {
		out[i] = c
	}
	return out
}

// Find returns the first bone named name in b's subtree, b included, or
// nil.
func (b *Bone) Find(name string) *Bone {
	if b.name == name {
		return b
	}
	b.mu.RLock()
	children := b.children
	b.mu.RUnlock()
	for _, c := range children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

func (b *Bone) HasExcludedMarker() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.excluded
}

func (b *Bone) LocalPosition() (mgl32.Vec3, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.gone {
		return mgl32.Vec3{}, ErrNodeGone
	}
	return b.position, nil
}

func (b *Bone) LocalRotation() (mgl32.Quat, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.gone {
		return mgl32.Quat{}, ErrNodeGone
	}
	return b.rotation, nil
}

func (b *Bone) SetLocalPosition(v mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.position = v
}

func (b *Bone) SetLocalRotation(q mgl32.Quat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotation = q
}

// Position returns the current local position, ignoring destruction.
func (b *Bone) Position() mgl32.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

// Rotation returns the current local rotation, ignoring destruction.
func (b *Bone) Rotation() mgl32.Quat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rotation
}

// Body is an in-memory Root.
type Body struct {
	mu       sync.RWMutex
	position mgl32.Vec3
	rotation mgl32.Quat
}

// NewBody creates a body at pos with identity rotation.
func NewBody(pos mgl32.Vec3) *Body {
	return &Body{position: pos, rotation: mgl32.QuatIdent()}
}

func (b *Body) WorldPosition() mgl32.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

func (b *Body) WorldRotation() mgl32.Quat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rotation
}

func (b *Body) SetWorldPosition(v mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.position = v
}

func (b *Body) SetWorldRotation(q mgl32.Quat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotation = q
}

// Humanoid builds the small climber skeleton used by the generator and
// tests: an armature with hips, spine, head and two three-bone arms. A
// particle emitter under the head is marked excluded.
func Humanoid() *Bone {
	arm := func(side string) *Bone {
		return NewBone("Upper" + side).Add(
			NewBone("Lower" + side).Add(
				NewBone("Hand" + side),
			),
		)
	}
	return NewBone("Armature").Add(
		NewBone("Hips").Add(
			NewBone("Spine").Add(
				NewBone("Head").Add(NewBone("Dust").Exclude()),
				arm("L"),
				arm("R"),
			),
		),
	)
}
