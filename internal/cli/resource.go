package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/locus"
	"github.com/hupe1980/locus/roots"
)

const (
	FlagRoot   = "root"
	FlagAll    = "all"
	FlagExists = "exists"
	FlagGlob   = "glob"
	FlagForce  = "force"
)

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find PATH",
		Short: "Resolve a logical path to a concrete file",
		Long: `Resolve a logical path through the roots in priority order and print
the first existing expansion, or the default root's expansion when none
exists. With --all (or --root all) every existing expansion is printed, and with --glob
every entry below PATH that matches the pattern, across all roots.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			where, err := cmd.Flags().GetString(FlagRoot)
			if err != nil {
				return err
			}
			all, err := cmd.Flags().GetBool(FlagAll)
			if err != nil {
				return err
			}
			mustExist, err := cmd.Flags().GetBool(FlagExists)
			if err != nil {
				return err
			}
			pattern, err := cmd.Flags().GetString(FlagGlob)
			if err != nil {
				return err
			}

			return withLocus(cmd, func(l *locus.Locus) error {
				out := cmd.OutOrStdout()
				if pattern != "" {
					found, err := l.Path(args[0]).GlobAll(pattern)
					if err != nil {
						return err
					}
					if len(found) == 0 && mustExist {
						return fmt.Errorf("%s/%s: %w", args[0], pattern, locus.ErrNotFound)
					}
					for _, p := range found {
						fmt.Fprintf(out, "%s\t%s\n", p.Where(), p)
					}
					return nil
				}
				if all || where == roots.All {
					found, err := l.Resolve(cmd.Context(), args[0], roots.All)
					if err != nil {
						return err
					}
					if len(found) == 0 && mustExist {
						return fmt.Errorf("%s: %w", args[0], locus.ErrNotFound)
					}
					for _, p := range found {
						fmt.Fprintf(out, "%s\t%s\n", p.Where(), p)
					}
					return nil
				}

				p, err := l.Find(cmd.Context(), args[0], where)
				if err != nil {
					return err
				}
				if mustExist && !p.Exists() {
					return fmt.Errorf("%s: %w", args[0], locus.ErrNotFound)
				}
				fmt.Fprintln(out, p)
				return nil
			})
		},
		DisableAutoGenTag: true,
	}

	cmd.Flags().StringP(FlagRoot, "r", "", fmt.Sprintf("resolve through this root only (%q prints every existing expansion)", roots.All))
	cmd.Flags().Bool(FlagAll, false, "print every existing expansion")
	cmd.Flags().Bool(FlagExists, false, "fail when the resource does not exist")
	cmd.Flags().String(FlagGlob, "", "list entries below PATH matching this pattern in every root")
	return cmd
}

func newRootsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "List the registered roots in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLocus(cmd, func(l *locus.Locus) error {
				out := cmd.OutOrStdout()
				reg := l.Roots()
				for _, name := range reg.Order() {
					root, _ := reg.Get(name)
					fmt.Fprintf(out, "%s\t%s\n", name, root.Template)
				}
				for _, name := range reg.Names() {
					if root, ok := reg.Get(name); ok && root.IsAlias() {
						fmt.Fprintf(out, "%s\t-> %s\n", name, root.Alias)
					}
				}
				return nil
			})
		},
		DisableAutoGenTag: true,
	}
}

func newIdentifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify PATH...",
		Short: "Map concrete paths back to their logical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocus(cmd, func(l *locus.Locus) error {
				for _, arg := range args {
					fmt.Fprintln(cmd.OutOrStdout(), l.Identify(arg))
				}
				return nil
			})
		},
		DisableAutoGenTag: true,
	}
}

func newProduceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "produce PATH [-- COMMAND [ARG...]]",
		Short: "Produce a missing resource and print where it lives",
		Long: `Produce a missing resource and print where it lives. When a command
follows "--" its standard output becomes the content of the resource.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, err := cmd.Flags().GetBool(FlagForce)
			if err != nil {
				return err
			}
			logical, command, err := splitCommand(cmd, args)
			if err != nil {
				return err
			}
			return withLocus(cmd, func(l *locus.Locus) error {
				if len(command) > 0 {
					l.Claim(logical, commandProducer(command))
				}
				p, err := l.Produce(cmd.Context(), logical, force)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			})
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().Bool(FlagForce, false, "produce even if the resource exists")
	return cmd
}
