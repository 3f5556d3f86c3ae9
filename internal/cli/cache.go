package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/newsplaces/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the completion cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired completions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, dir, err := openCache()
		if err != nil {
			return err
		}
		n, err := c.Prune()
		if err != nil {
			return fmt.Errorf("prune cache %s: %w", dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries from %s\n", n, dir)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, dir, err := openCache()
		if err != nil {
			return err
		}
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear cache %s: %w", dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", dir)
		return nil
	},
}

func openCache() (*cache.LayeredCache, string, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, "", err
	}
	return cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL), cfg.Cache.Dir, nil
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
