// Package cli implements the locus command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hupe1980/locus"
	"github.com/hupe1980/locus/config"
)

const (
	FlagConfig    = "config"
	FlagPackage   = "package"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
)

type locusKey struct{}

// New returns the root command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locus [sub-command]",
		Short: "Resolve resources through root templates and cache results",
		Long: `locus maps logical resource paths such as share/genes.tsv onto
  concrete files through an ordered list of root templates, produces
  missing resources on demand and memoizes command output on disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: setup,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	registerGlobalFlags(cmd.PersistentFlags())

	cmd.AddCommand(newFindCmd())
	cmd.AddCommand(newRootsCmd())
	cmd.AddCommand(newIdentifyCmd())
	cmd.AddCommand(newProduceCmd())
	cmd.AddCommand(newPersistCmd())
	cmd.AddCommand(newCacheCmd())
	return cmd
}

func registerGlobalFlags(flags *pflag.FlagSet) {
	flags.String(FlagConfig, "", "configuration file (YAML, JSON or JSONC)")
	flags.String(FlagPackage, "", "package directory name substituted for {PKGDIR}")
	flags.String(FlagLogLevel, "", "log level, one of debug, info, warn, error")
	flags.String(FlagLogFormat, "", "log format, one of text, json")
}

// setup loads the configuration and stores the Locus in the command context.
func setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, err := flags.GetString(FlagConfig)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	for flag, dst := range map[string]*string{
		FlagPackage:   &cfg.Package,
		FlagLogLevel:  &cfg.Logging.Level,
		FlagLogFormat: &cfg.Logging.Format,
	} {
		if flags.Changed(flag) {
			if *dst, err = flags.GetString(flag); err != nil {
				return err
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)
	}

	l, err := locus.FromConfig(cfg, locus.WithLogger(locus.NewLogger(handler)))
	if err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(cmd.Context(), locusKey{}, l))
	return nil
}

// withLocus runs fn with the Locus created in setup and closes it afterwards.
func withLocus(cmd *cobra.Command, fn func(l *locus.Locus) error) (err error) {
	l, ok := cmd.Context().Value(locusKey{}).(*locus.Locus)
	if !ok {
		return fmt.Errorf("locus not initialized")
	}
	defer func() {
		if cerr := l.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(l)
}
