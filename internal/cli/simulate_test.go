package cli

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/config"
	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
	"github.com/SmitUplenchwar2687/splitghost/internal/store"
	"github.com/SmitUplenchwar2687/splitghost/internal/timersync"
	"github.com/SmitUplenchwar2687/splitghost/pkg/generate"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestSimulation(t *testing.T, st store.Store, inGameTime bool) simulation {
	t.Helper()
	opts := generate.DefaultOptions()
	opts.Seed = 5
	run, err := generate.GenerateRun(&opts)
	if err != nil {
		t.Fatalf("GenerateRun() error = %v", err)
	}
	return simulation{
		run:        run,
		store:      st,
		save:       st != nil,
		clock:      clock.NewVirtualClock(epoch),
		thresholds: splits.DefaultThresholds(),
		splitOpts:  splits.Options{UseGrabSplits: true, UseInGameTime: inGameTime},
		session:    config.Default().Session(),
		log:        quietLogger(),
	}
}

func TestRunSimulation_SavesAndPlaysGhosts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(clock.NewVirtualClock(epoch))

	sim := newTestSimulation(t, st, false)
	res, err := runSimulation(ctx, sim)
	if err != nil {
		t.Fatalf("runSimulation() error = %v", err)
	}
	if res.Ticks != len(sim.run.Observations)-1 {
		t.Errorf("Ticks = %d, want %d", res.Ticks, len(sim.run.Observations)-1)
	}
	if res.Phase != splits.Reset {
		t.Errorf("Phase = %v, want %v", res.Phase, splits.Reset)
	}
	if res.Keyframes == 0 {
		t.Error("Keyframes = 0, want a recorded run")
	}
	if res.Entry == nil {
		t.Fatal("Entry = nil, want the recording saved")
	}

	sim = newTestSimulation(t, st, false)
	sim.ghosts = true
	res, err = runSimulation(ctx, sim)
	if err != nil {
		t.Fatalf("second runSimulation() error = %v", err)
	}
	if res.Ghosts != 1 {
		t.Errorf("Ghosts = %d, want 1", res.Ghosts)
	}

	entries, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestRunSimulation_NoStore(t *testing.T) {
	sim := newTestSimulation(t, nil, true)
	res, err := runSimulation(context.Background(), sim)
	if err != nil {
		t.Fatalf("runSimulation() error = %v", err)
	}
	if res.Entry != nil {
		t.Errorf("Entry = %+v, want nil without a store", res.Entry)
	}
	if res.RunTime <= 0 {
		t.Errorf("RunTime = %v, want positive", res.RunTime)
	}
}

func TestRunSimulation_LocalTimerCompletesRun(t *testing.T) {
	if testing.Short() {
		t.Skip("uses a loopback timer")
	}

	for _, igt := range []bool{false, true} {
		local, err := startLocalTimer(splits.DefaultSplitNames, "crlf", quietLogger())
		if err != nil {
			t.Fatalf("startLocalTimer() error = %v", err)
		}

		tc := config.Default().TimerClient()
		tc.UseInGameTime = igt
		client := timersync.New(timersync.TCPDialer(local.addr), tc, timersync.WithLogger(quietLogger()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := client.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := waitFor(ctx, func() bool { return client.Status() == timersync.Connected }); err != nil {
			t.Fatalf("igt=%v: client never connected: %v", igt, err)
		}
		sleepCtx(ctx, settleDelay)

		sim := newTestSimulation(t, nil, igt)
		sim.timer = client
		if _, err := runSimulation(ctx, sim); err != nil {
			t.Fatalf("igt=%v: runSimulation() error = %v", igt, err)
		}

		ended := func() bool { return local.lines.Timer().State().Phase == timersync.PhaseEnded.String() }
		if err := waitFor(ctx, ended); err != nil {
			t.Errorf("igt=%v: timer state = %+v, want Ended", igt, local.lines.Timer().State())
		}
		if st := local.lines.Timer().State(); st.Completed != 1 {
			t.Errorf("igt=%v: Completed = %d, want 1", igt, st.Completed)
		}

		client.Close()
		local.lines.Close()
		cancel()
	}
}
