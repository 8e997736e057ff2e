package replay

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testPlayer(t *testing.T) *Player {
	t.Helper()
	p, err := New(world.NewBody(mgl32.Vec3{}), []world.Target{world.NewBone("a"), world.NewBone("b")}, reel())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunner_TicksAndLoops(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	r := NewRunner(vc, 250*time.Millisecond, 0, testPlayer(t)) // speed=0 → instant

	var frames []Frame
	summary, err := r.Run(context.Background(), 5*time.Second, func(f Frame) {
		frames = append(frames, f)
	})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Ticks != 20 {
		t.Errorf("Ticks = %d, want 20", summary.Ticks)
	}
	if len(frames) != 20 {
		t.Errorf("got %d frames, want 20", len(frames))
	}
	// A 2s reel played for 5s wraps at 2s and 4s.
	if summary.Loops[0] != 2 {
		t.Errorf("Loops = %d, want 2", summary.Loops[0])
	}
	if summary.Duration != 5*time.Second {
		t.Errorf("Duration = %v, want 5s", summary.Duration)
	}
	if got := vc.Now(); !got.Equal(epoch.Add(5 * time.Second)) {
		t.Errorf("clock = %v, want epoch+5s", got)
	}
}

func TestRunner_MultiplePlayers(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	r := NewRunner(vc, 500*time.Millisecond, 0, testPlayer(t), testPlayer(t))

	perPlayer := map[int]int{}
	_, err := r.Run(context.Background(), time.Second, func(f Frame) {
		perPlayer[f.Player]++
	})
	if err != nil {
		t.Fatal(err)
	}
	if perPlayer[0] != 2 || perPlayer[1] != 2 {
		t.Errorf("frames per player = %v, want 2 each", perPlayer)
	}
}

func TestRunner_NoPlayers(t *testing.T) {
	r := NewRunner(clock.NewVirtualClock(epoch), time.Second, 0)

	if _, err := r.Run(context.Background(), time.Second, nil); err == nil {
		t.Error("expected error with no players")
	}
}

func TestRunner_BadStep(t *testing.T) {
	r := NewRunner(clock.NewVirtualClock(epoch), 0, 0, testPlayer(t))

	if _, err := r.Run(context.Background(), time.Second, nil); err == nil {
		t.Error("expected error for zero step")
	}
}

func TestRunner_ContextCancellation(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	r := NewRunner(vc, 50*time.Millisecond, 0, testPlayer(t))

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	summary, err := r.Run(ctx, time.Hour, func(Frame) {
		count++
		if count >= 5 {
			cancel()
		}
	})

	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if summary.Ticks < 5 {
		t.Errorf("should have ticked at least 5 times, got %d", summary.Ticks)
	}
}
