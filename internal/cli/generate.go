package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/splitghost/internal/codec"
	"github.com/SmitUplenchwar2687/splitghost/internal/config"
	"github.com/SmitUplenchwar2687/splitghost/pkg/generate"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic replays and config",
		Long: `Generates sample data for testing and experimentation.

Use "generate run" to record a synthetic climb as a replay.
Use "generate config" to create an example config JSON file.`,
	}

	cmd.AddCommand(newGenerateRunCmd(), newGenerateConfigCmd())
	return cmd
}

func newGenerateRunCmd() *cobra.Command {
	var (
		output   string
		save     bool
		name     string
		opts     = generate.DefaultOptions()
		storeOpt = defaultStoreOptions()
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Record a synthetic climb as a replay",
		Long: `Simulates a climber on a humanoid skeleton and records it.

Patterns:
  climb    Follows the whole course and finishes in the water at the top
  fall     Climbs to the pool and falls back to the spawn
  sway     Hangs at the spawn swinging the arms

The replay is written to --output, or into the replay store with --save.`,
		Example: `  splitghost generate run --output climb.dcg
  splitghost generate run --pattern fall --seed 7 --output fall.dcg
  splitghost generate run --save --store redis --redis-host localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("sync-every") {
				opts.SyncEvery = cfg.Recording.SyncEvery
			}
			if !cmd.Flags().Changed("format-version") {
				opts.Version = cfg.Recording.Version
			}
			if !save && output == "" {
				output = opts.Pattern + ".dcg"
			}

			run, err := generate.GenerateRun(&opts)
			if err != nil {
				return err
			}
			rf := run.Replay
			out := cmd.OutOrStdout()

			if output != "" {
				if err := codec.WriteFile(output, rf); err != nil {
					return err
				}
				fmt.Fprintf(out, "Generated %s replay to %s\n", opts.Pattern, output)
			}
			if save {
				st, err := storeOpt.openStore(cmd, &cfg, nil)
				if err != nil {
					return err
				}
				defer st.Close()
				if name == "" {
					name = opts.Pattern
				}
				e, err := st.Put(context.Background(), name, rf)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved %s replay as %s\n", opts.Pattern, e.ID)
			}

			fmt.Fprintf(out, "  Ticks:      %d\n", len(run.Observations))
			fmt.Fprintf(out, "  Keyframes:  %d (%d sync)\n", len(rf.Keyframes), rf.SyncFrames())
			fmt.Fprintf(out, "  Duration:   %.3fs\n", rf.Duration())
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output file path (default <pattern>.dcg unless --save)")
	cmd.Flags().BoolVar(&save, "save", false, "save the replay into the replay store")
	cmd.Flags().StringVar(&name, "name", "", "replay name in the store (default: pattern)")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", opts.Pattern, "climb pattern (climb, fall, sway)")
	cmd.Flags().Float32Var(&opts.Speed, "speed", opts.Speed, "climbing speed in world units per second")
	cmd.Flags().Float32Var(&opts.Tick, "tick", opts.Tick, "simulation step in seconds")
	cmd.Flags().Float32Var(&opts.Interval, "interval", 0, "recording interval in seconds (0 = every tick)")
	cmd.Flags().IntVar(&opts.SyncEvery, "sync-every", opts.SyncEvery, "force a sync keyframe every N keyframes")
	cmd.Flags().StringVar(&opts.Version, "format-version", opts.Version, "replay format version string")
	cmd.Flags().Float32Var(&opts.Duration, "duration", opts.Duration, "length of a sway run in seconds")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed for the arm swing (0 = random)")
	storeOpt.addFlags(cmd)

	return cmd
}

func newGenerateConfigCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example config JSON file",
		Example: `  splitghost generate config --output splitghost.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(output); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config at %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "splitghost.json", "output file path")

	return cmd
}
