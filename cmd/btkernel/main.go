// Command btkernel is a thin CLI over the backtest kernel: it parses flags
// into a config.Config and dispatches into internal/ladder and
// internal/cache. It holds no simulation logic of its own.
package main

import (
	"os"

	"github.com/avalytics/btkernel/cmd/btkernel/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
