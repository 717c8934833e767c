package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/pcs/internal/cache"
	"github.com/Norgate-AV/pcs/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local dependency cache",
	Long:  `Inspect or clear the bolt dependency cache. Remote backends are managed with their own tooling.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show dependency cache statistics",
	RunE:         runCacheStats,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove all dependency snapshots",
	RunE:         runCacheClear,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openBoltCache(cmd *cobra.Command) (*cache.BoltStore, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Backend != config.CacheBackendBolt {
		return nil, fmt.Errorf("cache %s only supports the %s backend, configured backend is %s", cmd.Name(), config.CacheBackendBolt, cfg.Cache.Backend)
	}

	return cache.NewBoltStore(cfg.Cache.Path)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	store, err := openBoltCache(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	count, size, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Location: %s\nEntries:  %d\nSize:     %s\n", store.Root(), count, formatBytes(size))
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	store, err := openBoltCache(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cleared dependency cache at %s\n", store.Root())
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
