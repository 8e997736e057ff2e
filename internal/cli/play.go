package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
	"github.com/SmitUplenchwar2687/splitghost/internal/replay"
	"github.com/SmitUplenchwar2687/splitghost/internal/store"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
)

// playFrame is a runner frame with the ghost's body position.
type playFrame struct {
	replay.Frame
	Body mgl32.Vec3 `json:"body"`
}

// ghostRig is a humanoid ghost with a replay bound to it.
type ghostRig struct {
	armature *world.Bone
	body     *world.Body
	player   *replay.Player
	matched  int
}

func newGhostRig(rf keyframe.ReplayFile) (*ghostRig, error) {
	armature := world.Humanoid()
	body := world.NewBody(mgl32.Vec3{})
	live := world.Enumerate(armature)
	mapping := replay.MatchPaths(rf.Paths, world.Paths(live))
	p, err := replay.New(body, replay.Retarget(world.Targets(live), mapping), rf.Keyframes)
	if err != nil {
		return nil, err
	}
	g := &ghostRig{armature: armature, body: body, player: p}
	for _, j := range mapping {
		if j >= 0 {
			g.matched++
		}
	}
	return g, nil
}

func newPlayCmd() *cobra.Command {
	var (
		id         string
		speed      float64
		step       time.Duration
		length     time.Duration
		every      int
		outputJSON bool
		storeOpt   = defaultStoreOptions()
	)

	cmd := &cobra.Command{
		Use:   "play [FILE]",
		Short: "Play a replay on a ghost skeleton",
		Long: `Plays a replay on a humanoid ghost with speed control.

The ghost is ticked on a virtual clock, so playback is deterministic at
any speed. Recorded node paths are matched against the ghost's skeleton;
nodes that do not match are left alone. Playback loops when it reaches
the end of the replay.

Speed: 0 = instant, 1 = real-time, 10 = 10x`,
		Example: `  splitghost play climb.dcg
  splitghost play climb.dcg --speed 1 --every 20
  splitghost play --id 2024-03-09_14-30-05_4b1c... --length 2m --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				rf     keyframe.ReplayFile
				source string
				err    error
			)
			switch {
			case len(args) == 1:
				source = args[0]
				rf, err = store.ReadFile(source)
			case id != "":
				cfg, cfgErr := loadConfig(cmd)
				if cfgErr != nil {
					return cfgErr
				}
				st, openErr := storeOpt.openStore(cmd, &cfg, nil)
				if openErr != nil {
					return openErr
				}
				defer st.Close()
				source = id
				rf, _, err = st.Get(cmd.Context(), id)
			default:
				return fmt.Errorf("a replay FILE or --id is required")
			}
			if err != nil {
				return fmt.Errorf("loading replay %s: %w", source, err)
			}

			g, err := newGhostRig(rf)
			if err != nil {
				return err
			}
			if length <= 0 {
				length = time.Duration(float64(rf.Duration()) * float64(time.Second))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if !outputJSON {
				fmt.Fprintf(out, "Playing %s at %.0fx speed (%d/%d nodes matched)...\n\n", source, speed, g.matched, len(rf.Paths))
			}

			var frames []playFrame
			vc := clock.NewVirtualClock(time.Now().Truncate(time.Second))
			r := replay.NewRunner(vc, step, speed, g.player)
			tick := 0
			summary, err := r.Run(ctx, length, func(f replay.Frame) {
				tick++
				if every > 0 && tick%every != 0 && !f.Looped {
					return
				}
				pf := playFrame{Frame: f, Body: g.body.WorldPosition()}
				if outputJSON {
					frames = append(frames, pf)
					return
				}
				marker := ""
				if f.Looped {
					marker = " (loop)"
				}
				fmt.Fprintf(out, "  [%8.3fs] keyframe=%-5d body=(%.2f, %.2f, %.2f)%s\n",
					f.Elapsed, f.Index, pf.Body.X(), pf.Body.Y(), pf.Body.Z(), marker)
			})
			if err != nil && summary == nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"frames":  frames,
					"summary": summary,
				})
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "--- Playback Summary ---")
			fmt.Fprintf(out, "  Ticks:          %d\n", summary.Ticks)
			fmt.Fprintf(out, "  Loops:          %d\n", summary.Loops[0])
			fmt.Fprintf(out, "  Replay length:  %.3fs\n", rf.Duration())
			fmt.Fprintf(out, "  Virtual time:   %s\n", summary.Duration)
			fmt.Fprintf(out, "  Wall time:      %s\n", summary.WallDuration.Round(time.Millisecond))
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "play a replay from the store instead of a file")
	cmd.Flags().Float64Var(&speed, "speed", 0, "playback speed (0=instant, 1=real-time, 10=10x)")
	cmd.Flags().DurationVar(&step, "step", 20*time.Millisecond, "virtual time per tick")
	cmd.Flags().DurationVar(&length, "length", 0, "virtual time to play (0 = one pass of the replay)")
	cmd.Flags().IntVar(&every, "every", 10, "print every Nth tick (0 = all)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output frames and summary as JSON")
	storeOpt.addFlags(cmd)

	return cmd
}
