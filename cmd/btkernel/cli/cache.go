package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Inspect or clear the result cache"}
	cmd.AddCommand(newCacheStatusCmd())
	cmd.AddCommand(newCacheCleanCmd())
	return cmd
}

func newCacheStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report how many cached entries exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(cacheDir)
			if os.IsNotExist(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no cache yet\n", cacheDir)
				return nil
			}
			if err != nil {
				return err
			}
			count := 0
			for _, e := range entries {
				if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
					count++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d cached entries\n", cacheDir, count)
			return nil
		},
	}
}

func newCacheCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(cacheDir)
			if os.IsNotExist(err) {
				return nil
			}
			if err != nil {
				return err
			}
			for _, e := range entries {
				if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
					continue
				}
				if err := os.Remove(filepath.Join(cacheDir, e.Name())); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
