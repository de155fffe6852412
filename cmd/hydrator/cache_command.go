package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hydrator/internal/resolvecache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the persistent lookup cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func openLookupCache(cmd *cobra.Command, ctx *commandContext) (*resolvecache.Cache, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return resolvecache.Open(cmd.Context(), cfg.LookupCachePath(), resolvecache.Options{TTL: cfg.CacheTTL()})
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show lookup cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openLookupCache(cmd, ctx)
			if err != nil {
				return err
			}
			defer cache.Close()

			stats, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:     %s\n", cache.Path())
			fmt.Fprintf(out, "Enabled:  %s\n", yesNo(cfg.Cache.Persistent))
			fmt.Fprintf(out, "Feeds:    %d\n", stats.Feeds)
			fmt.Fprintf(out, "Episodes: %d\n", stats.Episodes)
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached feed and episode lookup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWriterLock(func() error {
				cache, err := openLookupCache(cmd, ctx)
				if err != nil {
					return err
				}
				defer cache.Close()

				cleared, err := cache.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d feeds and %d episodes\n", cleared.Feeds, cleared.Episodes)
				return nil
			})
		},
	}
}
