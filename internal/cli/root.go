package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/splitghost/internal/config"
	"github.com/SmitUplenchwar2687/splitghost/internal/logging"
)

// NewRootCmd creates the root splitghost command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "splitghost",
		Short: "Ghost replays and split timer sync for climbing runs",
		Long: `splitghost records climbing runs as compact keyframe replays, plays
them back as ghosts, and keeps an external split timer in step with the run.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "path to a JSON config file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (text, json)")

	root.AddCommand(
		newInspectCmd(),
		newGenerateCmd(),
		newPlayCmd(),
		newSimulateCmd(),
		newTimerServerCmd(),
		newTimerCmd(),
		newStoreCmd(),
	)

	return root
}

// loadConfig reads --config, or the defaults when it is not set, and
// applies the persistent log flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		loaded, err := config.LoadFile(f.Value.String())
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if f := cmd.Flag("log-level"); f != nil && f.Changed {
		cfg.Log.Level = f.Value.String()
	}
	if f := cmd.Flag("log-format"); f != nil && f.Changed {
		cfg.Log.Format = f.Value.String()
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) (*logrus.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
}
