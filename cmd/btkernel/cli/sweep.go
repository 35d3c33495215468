package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var configDir, dataPath, levelName string
	var trials int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run every candidate config file in a directory through one ladder level",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(configDir)
			if err != nil {
				return err
			}
			var rejected, failed int
			for _, e := range entries {
				if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
					continue
				}
				path := filepath.Join(configDir, e.Name())
				code, err := runCandidate(path, dataPath, levelName, trials)
				switch {
				case err != nil:
					failed++
					baseLogger.Error().Str("config", path).Err(err).Msg("candidate failed")
				case code == exitRejected:
					rejected++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d candidate(s) failed", failed)
			}
			if rejected > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d candidate(s) rejected\n", rejected)
				os.Exit(exitRejected)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "directory of candidate config files (required)")
	cmd.Flags().StringVar(&dataPath, "data", "", "bar data CSV file (required)")
	cmd.Flags().StringVar(&levelName, "level", "l1", "ladder level to run per candidate: l1, l2, l3, l4, or l5")
	cmd.Flags().IntVar(&trials, "trials", 1, "trial count (L3 trial count; L4 path count; L5 trial count; ignored by L1/L2)")
	cmd.MarkFlagRequired("config-dir")
	cmd.MarkFlagRequired("data")
	return cmd
}
