package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/flight505/Readable/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show audio cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		c, err := openCacheForCmd()
		if err != nil {
			return err
		}

		stats := c.Stats()
		used := humanize.Bytes(uint64(stats.TotalSize))
		limit := humanize.Bytes(uint64(appConfig.CacheMaxSizeBytes()))

		fmt.Printf("Entries:  %d\n", stats.Entries)
		fmt.Printf("Size:     %s of %s\n", used, limit)
		fmt.Printf("Hits:     %d\n", stats.TotalHits)
		fmt.Printf("Avg hits: %.1f\n", stats.AvgHits)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached audio",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		c, err := openCacheForCmd()
		if err != nil {
			return err
		}
		if err := c.Clear(); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		fmt.Println("Audio cache cleared.")
		return nil
	},
}

// openCacheForCmd opens the cache even with --no-cache set, since the
// cache commands inspect the store rather than use it.
func openCacheForCmd() (*cache.Cache, error) {
	c, err := cache.New(appConfig.Cache.Dir, appConfig.CacheMaxSizeBytes())
	if err != nil {
		return nil, fmt.Errorf("unable to open audio cache: %w", err)
	}
	return c, nil
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
