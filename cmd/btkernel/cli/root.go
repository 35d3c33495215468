// Package cli implements the btkernel command tree: run, sweep, and cache
// management subcommands. It translates flags into internal/config and
// internal/cache calls and reports the documented exit codes; it contains
// no simulation logic itself.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/avalytics/btkernel/internal/obs"
)

var (
	cacheDir   string
	logPretty  bool
	logLevel   string
	baseLogger zerolog.Logger
)

// Execute builds and runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:   "btkernel",
		Short: "Deterministic backtest simulation and robustness kernel",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			baseLogger = obs.New(cmd.ErrOrStderr(), lvl, logPretty)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cacheDir, "cache-dir", ".btkernel-cache", "result cache directory")
	root.PersistentFlags().BoolVar(&logPretty, "pretty", true, "human-readable console logging")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newCacheCmd())

	return root.Execute()
}
