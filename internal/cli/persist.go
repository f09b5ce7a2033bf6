package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/locus"
	"github.com/hupe1980/locus/internal/fs"
	"github.com/hupe1980/locus/persist"
)

const (
	FlagUpdate = "update"
	FlagMaxAge = "max-age"
)

func newPersistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persist KEY -- COMMAND [ARG...]",
		Short: "Run a command once and replay its cached output",
		Long: `Run a command and cache its standard output under KEY. Later calls
with the same key print the cached output without running the command.
The output is streamed to stdout while it is written to the cache.`,
		Example: `  locus persist genome-index -- sh -c 'sort -k1,1 genes.tsv'`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, command, err := splitCommand(cmd, args)
			if err != nil {
				return err
			}
			if len(command) == 0 {
				return fmt.Errorf("no command given after --")
			}
			opts, err := persistOptions(cmd)
			if err != nil {
				return err
			}

			return withLocus(cmd, func(l *locus.Locus) error {
				entry, err := l.Persist(cmd.Context(), key, persist.Raw,
					func(ctx context.Context, _ string) (persist.Result, error) {
						r, err := startCommand(ctx, command)
						if err != nil {
							return persist.None(), err
						}
						return persist.Stream(r), nil
					}, opts...)
				if err != nil {
					return err
				}
				return replay(cmd.OutOrStdout(), l.Store().FileSystem(), entry)
			})
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().Bool(FlagUpdate, false, "run the command even if its output is cached")
	cmd.Flags().Duration(FlagMaxAge, 0, "rerun the command when the cached output is older than this")
	return cmd
}

func persistOptions(cmd *cobra.Command) ([]persist.Option, error) {
	update, err := cmd.Flags().GetBool(FlagUpdate)
	if err != nil {
		return nil, err
	}
	maxAge, err := cmd.Flags().GetDuration(FlagMaxAge)
	if err != nil {
		return nil, err
	}
	opts := []persist.Option{persist.WithNoLoad()}
	if update {
		opts = append(opts, persist.WithUpdate())
	}
	if maxAge > 0 {
		opts = append(opts, persist.WithUpdateIfOlder(time.Now().Add(-maxAge)))
	}
	return opts, nil
}

// replay copies a fresh stream or the cached artifact to w.
func replay(w io.Writer, fsys fs.FileSystem, entry *persist.Entry) error {
	if entry.Stream != nil {
		_, err := io.Copy(w, entry.Stream)
		if cerr := entry.Close(); err == nil {
			err = cerr
		}
		return err
	}
	f, err := fs.Open(fsys, entry.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLocus(cmd, func(l *locus.Locus) error {
				fmt.Fprintln(cmd.OutOrStdout(), l.Store().Dir())
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path KEY",
		Short: "Print the stable path of a cache key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocus(cmd, func(l *locus.Locus) error {
				fmt.Fprintln(cmd.OutOrStdout(), l.Store().Path(args[0]))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget KEY",
		Short: "Remove the cached artifact of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocus(cmd, func(l *locus.Locus) error {
				return l.Store().Forget(cmd.Context(), args[0])
			})
		},
	})
	return cmd
}
