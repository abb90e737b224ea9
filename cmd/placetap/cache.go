package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the API response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show response cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		fmt.Printf("Cache: %s\n", c.Dir())
		fmt.Printf("Entries: %s\n", humanize.Comma(int64(c.Size())))
		fmt.Printf("Size: %s\n", humanize.Bytes(uint64(c.Bytes())))
		fmt.Printf("TTL: %s\n", c.TTL())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached response",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		removed := c.Clear()
		if removed == 0 {
			fmt.Println("Cache already empty.")
		} else {
			fmt.Printf("Removed %s cached responses.\n", humanize.Comma(int64(removed)))
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache() (*cache.Cache, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cache.New(cfg.ResolvedCacheDir(), cfg.CacheTTLDuration(), nil), nil
}
