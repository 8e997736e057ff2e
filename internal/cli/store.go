package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/splitghost/internal/codec"
	"github.com/SmitUplenchwar2687/splitghost/internal/store"
)

func newStoreCmd() *cobra.Command {
	storeOpt := defaultStoreOptions()

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage replays in the replay store",
		Long: `Lists, imports, exports and deletes replays in the configured store.

The dir backend keeps one .dcg file per replay in the replay directory,
which is also where a live session saves its recordings. The redis
backend keeps compressed replays under a key prefix so several machines
can share ghosts.`,
	}
	storeOpt.addPersistentFlags(cmd)

	open := func(cmd *cobra.Command) (store.Store, error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		return storeOpt.openStore(cmd, &cfg, nil)
	}

	cmd.AddCommand(
		newStoreListCmd(open),
		newStorePushCmd(open),
		newStorePullCmd(open),
		newStoreRmCmd(open),
	)
	return cmd
}

type storeOpener func(cmd *cobra.Command) (store.Store, error)

func newStoreListCmd(open storeOpener) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List stored replays, oldest first",
		Example: `  splitghost store list --store-dir Replays`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output entries as JSON")
	return cmd
}

func printEntries(w io.Writer, entries []store.Entry, outputJSON bool) error {
	if outputJSON {
		if entries == nil {
			entries = []store.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No replays stored.")
		return nil
	}
	fmt.Fprintf(w, "%-20s  %-9s  %-5s  %-9s  %s\n", "CREATED", "DURATION", "NODES", "KEYFRAMES", "ID")
	for _, e := range entries {
		fmt.Fprintf(w, "%-20s  %8.2fs  %5d  %9d  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Duration, e.Nodes, e.Keyframes, e.ID)
	}
	fmt.Fprintf(w, "\n%d replay(s)\n", len(entries))
	return nil
}

func newStorePushCmd(open storeOpener) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:     "push FILE...",
		Short:   "Import replay files into the store",
		Example: `  splitghost store push climb.dcg fall.dcg --store redis`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, path := range args {
				rf, err := store.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				n := name
				if n == "" {
					n = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				e, err := st.Put(cmd.Context(), n, rf)
				if err != nil {
					return fmt.Errorf("storing %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, e.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "replay name (default: file name)")
	return cmd
}

func newStorePullCmd(open storeOpener) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "pull ID",
		Short:   "Export a stored replay to a .dcg file",
		Example: `  splitghost store pull 2024-03-09_14-30-05_4b1c... --output best.dcg`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rf, e, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = e.ID + ".dcg"
			}
			if err := codec.WriteFile(output, rf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", e.ID, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output file path (default <id>.dcg)")
	return cmd
}

func newStoreRmCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		Short:   "Delete stored replays",
		Example: `  splitghost store rm 2024-03-09_14-30-05_4b1c...`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, id := range args {
				if err := st.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("deleting %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}
