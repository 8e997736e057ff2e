package replay

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/SmitUplenchwar2687/splitghost/internal/world"
	"github.com/SmitUplenchwar2687/splitghost/pkg/clock"
	"github.com/SmitUplenchwar2687/splitghost/pkg/generate"
)

func TestReplayBasic(t *testing.T) {
	opts := generate.DefaultOptions()
	opts.Seed = 5
	run, err := generate.GenerateRun(&opts)
	if err != nil {
		t.Fatalf("GenerateRun() failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "climb.dcg")
	if err := WriteFile(path, run.Replay); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	rf, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}

	armature := world.Humanoid()
	live := world.Enumerate(armature)
	targets := Retarget(world.Targets(live), MatchPaths(rf.Paths, world.Paths(live)))
	body := world.NewBody(mgl32.Vec3{})
	p, err := New(body, targets, rf.Keyframes)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	vc := clock.NewVirtualClock(start)
	summary, err := NewRunner(vc, 50*time.Millisecond, 0, p).Run(context.Background(), time.Second, nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.Ticks != 20 {
		t.Fatalf("Ticks = %d, want 20", summary.Ticks)
	}
	if y := body.WorldPosition().Y(); y <= 0 {
		t.Fatalf("body Y = %v, want the ghost to have climbed", y)
	}
}
