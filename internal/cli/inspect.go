package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
	"github.com/SmitUplenchwar2687/splitghost/internal/store"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
)

// replayInfo summarises one replay file.
type replayInfo struct {
	File       string   `json:"file"`
	Bytes      int64    `json:"bytes"`
	Version    string   `json:"version"`
	Nodes      int      `json:"nodes"`
	Keyframes  int      `json:"keyframes"`
	SyncFrames int      `json:"sync_frames"`
	Duration   float32  `json:"duration"`
	Paths      []string `json:"paths,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var (
		showPaths  bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Decode replay files and print a summary",
		Long: `Decodes one or more .dcg replay files and prints the format version,
node count, keyframe count, sync frames and duration of each.

Compressed replays written by the dir store are read transparently.
A file that fails to decode is reported and the command exits non-zero.`,
		Example: `  splitghost inspect Replays/*.dcg
  splitghost inspect run.dcg --paths
  splitghost inspect run.dcg --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := inspectFiles(args, showPaths)
			if err := printInspect(cmd.OutOrStdout(), infos, outputJSON); err != nil {
				return err
			}
			for _, info := range infos {
				if info.Error != "" {
					return fmt.Errorf("%s: %s", info.File, info.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPaths, "paths", false, "list the recorded node paths")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}

func inspectFiles(paths []string, showPaths bool) []replayInfo {
	infos := make([]replayInfo, 0, len(paths))
	for _, p := range paths {
		info := replayInfo{File: p}
		if st, err := os.Stat(p); err == nil {
			info.Bytes = st.Size()
		}
		rf, err := store.ReadFile(p)
		if err != nil {
			info.Error = err.Error()
			infos = append(infos, info)
			continue
		}
		fillInfo(&info, rf, showPaths)
		infos = append(infos, info)
	}
	return infos
}

func fillInfo(info *replayInfo, rf keyframe.ReplayFile, showPaths bool) {
	info.Version = rf.Version
	info.Nodes = len(rf.Paths)
	info.Keyframes = len(rf.Keyframes)
	info.SyncFrames = rf.SyncFrames()
	info.Duration = rf.Duration()
	if showPaths {
		info.Paths = rf.Paths
	}
}

func printInspect(w io.Writer, infos []replayInfo, outputJSON bool) error {
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n", info.File)
		if info.Error != "" {
			fmt.Fprintf(w, "  Error:        %s\n", info.Error)
			continue
		}
		fmt.Fprintf(w, "  Size:         %d bytes\n", info.Bytes)
		fmt.Fprintf(w, "  Version:      %s\n", info.Version)
		fmt.Fprintf(w, "  Nodes:        %d\n", info.Nodes)
		fmt.Fprintf(w, "  Keyframes:    %d (%d sync)\n", info.Keyframes, info.SyncFrames)
		fmt.Fprintf(w, "  Duration:     %.3fs\n", info.Duration)
		if len(info.Paths) > 0 {
			fmt.Fprintln(w, "  Paths:")
			for j, p := range info.Paths {
				fmt.Fprintf(w, "    %3d %s\n", j, strings.ReplaceAll(p, world.PathSeparator, "/"))
			}
		}
	}
	return nil
}
