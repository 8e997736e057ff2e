package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/server"
	"github.com/SmitUplenchwar2687/splitghost/internal/session"
	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
	"github.com/SmitUplenchwar2687/splitghost/internal/store"
	"github.com/SmitUplenchwar2687/splitghost/internal/timersync"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
	"github.com/SmitUplenchwar2687/splitghost/pkg/generate"
)

// Timer targets for the simulate command.
const (
	timerNone   = "none"
	timerLocal  = "local"
	timerRemote = "remote"
)

// simulation is one synthetic session: a generated climber recorded live
// while stored ghosts play and the split timer follows along.
type simulation struct {
	run        *generate.Run
	store      store.Store // nil: no ghosts, nothing saved
	ghosts     bool
	save       bool
	timer      session.Timer
	clock      *clock.VirtualClock
	thresholds splits.Thresholds
	splitOpts  splits.Options
	session    session.Config
	speed      float64
	log        logrus.FieldLogger
}

// simResult summarises a simulation.
type simResult struct {
	Ticks     int            `json:"ticks"`
	Ghosts    int            `json:"ghosts"`
	Phase     splits.Command `json:"phase"`
	RunTime   float32        `json:"run_time"`
	Keyframes int            `json:"keyframes"`
	Entry     *store.Entry   `json:"entry,omitempty"`
}

func humanoidGhost(store.Entry) (world.Root, world.Node, error) {
	return world.NewBody(mgl32.Vec3{}), world.Humanoid(), nil
}

func runSimulation(ctx context.Context, s simulation) (*simResult, error) {
	tick := s.run.Tick
	step := time.Duration(float64(tick) * float64(time.Second))
	res := &simResult{}

	rec := session.NewRecording(s.session, s.store, session.WithLogger(s.log), session.WithClock(s.clock))
	if s.ghosts && s.store != nil {
		res.Ghosts, _ = rec.LoadGhosts(ctx, humanoidGhost)
	}

	// The live climber replays the generated run.
	live, err := newGhostRig(s.run.Replay)
	if err != nil {
		return nil, err
	}
	if err := rec.Start(live.body, live.armature); err != nil {
		return nil, err
	}

	driver := session.NewSplitDriver(splits.NewGenerator(s.thresholds, s.splitOpts), s.timer, s.clock, s.log)
	driver.Spawn()
	if s.splitOpts.UseInGameTime {
		driver.StartTimer()
	}

	won := false
	for i, o := range s.run.Observations {
		if i > 0 {
			if s.speed > 0 && !sleepCtx(ctx, time.Duration(float64(step)/s.speed)) {
				rec.Stop(ctx, false)
				return res, ctx.Err()
			}
			s.clock.Advance(step)
			if live.player.Elapsed()+tick < live.player.Duration() {
				live.player.Advance(tick)
			}
			if err := rec.Tick(ctx, tick); err != nil {
				return res, err
			}
			res.Ticks++
		}
		driver.Observe(o)
		driver.Update()
		if s.splitOpts.UseInGameTime && !won && driver.Generator().Phase() == splits.Reset {
			driver.GameWon(driver.RunTime())
			won = true
		}
	}

	res.Phase = driver.Generator().Phase()
	res.RunTime = driver.RunTime()
	res.Keyframes = rec.Keyframes()

	if !s.save {
		rec.Stop(ctx, false)
		return res, nil
	}
	_, entry, err := rec.Stop(ctx, true)
	if err != nil {
		return res, err
	}
	res.Entry = entry
	return res, nil
}

// localTimer runs an in-process timer on a loopback port.
type localTimer struct {
	lines *server.LineServer
	addr  string
}

func startLocalTimer(names []string, lineEnding string, log logrus.FieldLogger) (*localTimer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	ls := server.NewLineServer(server.NewTimer(names), nil, nil, log, lineEnding)
	go ls.Serve(ln)
	return &localTimer{lines: ls, addr: ln.Addr().String()}, nil
}

func newSimulateCmd() *cobra.Command {
	var (
		opts       = generate.DefaultOptions()
		target     string
		speed      float64
		ghosts     bool
		save       bool
		grabSplits bool
		inGameTime bool
		wait       time.Duration
		storeOpt   = defaultStoreOptions()
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic climbing session end to end",
		Long: `Runs a synthetic climber through a full session: the climb is recorded
at the configured cadence, stored replays play alongside as ghosts, and
every section the climber completes is sent to the split timer.

Timer targets:
  local     An in-process timer on a loopback port (default)
  remote    The timer at timer.address, e.g. a running timer-server
  none      Split detection only, nothing is sent

Speed: 0 = instant, 1 = real-time, 10 = 10x`,
		Example: `  splitghost simulate
  splitghost simulate --pattern fall --ghosts --save
  splitghost simulate --timer remote --speed 4 --grab-splits=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			splitOpts := cfg.SplitOptions()
			if cmd.Flags().Changed("grab-splits") {
				splitOpts.UseGrabSplits = grabSplits
			}
			if cmd.Flags().Changed("in-game-time") {
				splitOpts.UseInGameTime = inGameTime
			}
			tc := cfg.TimerClient()
			tc.UseInGameTime = splitOpts.UseInGameTime

			opts.SyncEvery = cfg.Recording.SyncEvery
			opts.Version = cfg.Recording.Version
			run, err := generate.GenerateRun(&opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sim := simulation{
				run:        run,
				ghosts:     ghosts,
				save:       save,
				clock:      clock.NewVirtualClock(time.Now().Truncate(time.Second)),
				thresholds: cfg.Splits,
				splitOpts:  splitOpts,
				session:    cfg.Session(),
				speed:      speed,
				log:        log,
			}
			if ghosts || save {
				st, err := storeOpt.openStore(cmd, &cfg, nil)
				if err != nil {
					return err
				}
				defer st.Close()
				sim.store = st
			}

			var (
				local  *localTimer
				client *timersync.Client
			)
			switch target {
			case timerNone:
			case timerLocal:
				local, err = startLocalTimer(tc.SplitNames, tc.LineEnding, log)
				if err != nil {
					return err
				}
				defer local.lines.Close()
				client = timersync.New(timersync.TCPDialer(local.addr), tc, timersync.WithLogger(log))
			case timerRemote:
				dialer, err := timersync.NewDialer(cfg.Timer.Transport, cfg.Timer.Address)
				if err != nil {
					return err
				}
				client = timersync.New(dialer, tc, timersync.WithLogger(log))
			default:
				return fmt.Errorf("unknown timer target %q (want local, remote or none)", target)
			}

			if client != nil {
				if err := client.Start(ctx); err != nil {
					return err
				}
				defer client.Close()
				waitCtx, cancel := context.WithTimeout(ctx, wait)
				err := waitFor(waitCtx, func() bool { return client.Status() == timersync.Connected })
				cancel()
				if err != nil {
					return fmt.Errorf("connecting to timer: %w", err)
				}
				sleepCtx(ctx, settleDelay)
				sim.timer = client
			}

			res, err := runSimulation(ctx, sim)
			if err != nil {
				return err
			}

			if client != nil {
				waitCtx, cancel := context.WithTimeout(ctx, wait)
				err := waitFor(waitCtx, func() bool { return client.Pending() == 0 })
				cancel()
				if err != nil {
					log.WithError(err).Warn("timer commands still pending")
				}
				sleepCtx(ctx, settleDelay)
			}

			printSimulation(cmd.OutOrStdout(), opts.Pattern, res, local)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Pattern, "pattern", opts.Pattern, "climb pattern (climb, fall, sway)")
	cmd.Flags().Float32Var(&opts.Speed, "climb-speed", opts.Speed, "climbing speed in world units per second")
	cmd.Flags().Float32Var(&opts.Tick, "tick", opts.Tick, "simulation step in seconds")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed for the arm swing (0 = random)")
	cmd.Flags().StringVar(&target, "timer", timerLocal, "timer target (local, remote, none)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "simulation speed (0=instant, 1=real-time, 10=10x)")
	cmd.Flags().BoolVar(&ghosts, "ghosts", false, "play every stored replay as a ghost")
	cmd.Flags().BoolVar(&save, "save", false, "save the recording into the replay store")
	cmd.Flags().BoolVar(&grabSplits, "grab-splits", true, "split on grabbed surfaces instead of body position")
	cmd.Flags().BoolVar(&inGameTime, "in-game-time", true, "let game events start the timer and send the final time")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the timer")
	storeOpt.addFlags(cmd)

	return cmd
}

func printSimulation(w io.Writer, pattern string, res *simResult, local *localTimer) {
	fmt.Fprintln(w, "--- Simulation Summary ---")
	fmt.Fprintf(w, "  Pattern:      %s\n", pattern)
	fmt.Fprintf(w, "  Ticks:        %d\n", res.Ticks)
	fmt.Fprintf(w, "  Run time:     %.3fs\n", res.RunTime)
	fmt.Fprintf(w, "  Next phase:   %s\n", res.Phase)
	fmt.Fprintf(w, "  Keyframes:    %d\n", res.Keyframes)
	fmt.Fprintf(w, "  Ghosts:       %d\n", res.Ghosts)
	if res.Entry != nil {
		fmt.Fprintf(w, "  Saved as:     %s\n", res.Entry.ID)
	}
	if local != nil {
		st := local.lines.Timer().State()
		fmt.Fprintf(w, "  Timer:        %s, split %d (%s), game time %.3fs\n",
			st.Phase, st.SplitIndex, st.SplitName, st.GameTime)
	}
}
