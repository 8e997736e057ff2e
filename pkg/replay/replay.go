package replay

import (
	"time"

	"github.com/SmitUplenchwar2687/splitghost/internal/codec"
	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
	internalreplay "github.com/SmitUplenchwar2687/splitghost/internal/replay"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
	"github.com/SmitUplenchwar2687/splitghost/pkg/clock"
)

// ReplayFile is a decoded replay.
type ReplayFile = keyframe.ReplayFile

// Player plays a replay on a live hierarchy.
type Player = internalreplay.Player

// Runner ticks players against a virtual clock.
type Runner = internalreplay.Runner

// Frame describes one player after a tick.
type Frame = internalreplay.Frame

// Summary aggregates a run.
type Summary = internalreplay.Summary

// New creates a player positioned at the first keyframe.
func New(root world.Root, targets []world.Target, keyframes []keyframe.Keyframe) (*Player, error) {
	return internalreplay.New(root, targets, keyframes)
}

// NewRunner creates a runner ticking every step of virtual time.
func NewRunner(vc *clock.VirtualClock, step time.Duration, speed float64, players ...*Player) *Runner {
	return internalreplay.NewRunner(vc, step, speed, players...)
}

// MatchPaths aligns recorded node paths with a live hierarchy.
func MatchPaths(recorded, live []string) []int {
	return internalreplay.MatchPaths(recorded, live)
}

// Retarget orders live targets by recorded node.
func Retarget(live []world.Target, mapping []int) []world.Target {
	return internalreplay.Retarget(live, mapping)
}

// ReadFile reads a .dcg replay file.
func ReadFile(path string) (ReplayFile, error) {
	return codec.ReadFile(path)
}

// WriteFile writes rf as a .dcg replay file.
func WriteFile(path string, rf ReplayFile) error {
	return codec.WriteFile(path, rf)
}
