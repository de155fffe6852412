package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"hydrator/internal/catalog"
	"hydrator/internal/config"
	"hydrator/internal/logging"
	"hydrator/internal/normalize"
	"hydrator/internal/pgsink"
	"hydrator/internal/podcastindex"
	"hydrator/internal/resolvecache"
	"hydrator/internal/resolver"
	"hydrator/internal/scheduler"
	"hydrator/internal/track"
)

type resolveFlags struct {
	refsPath   string
	batchSize  int
	delayMS    int
	maxRetries int
	jsonOutput bool
}

// resolveOutput is the --json document.
type resolveOutput struct {
	RunID     string                `json:"runId"`
	Summary   track.Summary         `json:"summary"`
	Tracks    []track.ResolvedTrack `json:"tracks"`
	Stored    catalog.UpsertStats   `json:"stored"`
	Mirrored  int                   `json:"mirrored,omitempty"`
	Reused    int                   `json:"reused"`
	Batches   int                   `json:"batches"`
	Elapsed   string                `json:"elapsed"`
	Cancelled bool                  `json:"cancelled,omitempty"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var flags resolveFlags

	cmd := &cobra.Command{
		Use:   "resolve [FEED.xml...]",
		Short: "Resolve remote item references against the Podcast Index",
		Long: "Resolve podcast:remoteItem references in rate-limited batches and store the outcomes.\n" +
			"Unresolved and unfindable references are reported but do not fail the command.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyResolveFlags(cmd, cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			items, feeds, err := collectReferences(flags.refsPath, args)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			warnSkipped(logger, feeds)
			return ctx.withWriterLock(func() error {
				return runResolve(cmd, ctx, cfg, logger, items, flags.jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&flags.refsPath, "refs", "", "YAML or JSON list of {feedGuid, itemGuid} references")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "References resolved concurrently per batch")
	cmd.Flags().IntVar(&flags.delayMS, "delay-ms", 0, "Pause between batches in milliseconds")
	cmd.Flags().IntVar(&flags.maxRetries, "max-retries", 0, "Retries per lookup on rate limits and transient errors")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func applyResolveFlags(cmd *cobra.Command, cfg *config.Config, flags resolveFlags) {
	if cmd.Flags().Changed("batch-size") {
		cfg.Resolver.BatchSize = flags.batchSize
	}
	if cmd.Flags().Changed("delay-ms") {
		cfg.Resolver.InterBatchDelayMS = flags.delayMS
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.Resolver.MaxRetries = flags.maxRetries
	}
}

func runResolve(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, logger *slog.Logger, items []scheduler.Item, jsonOutput bool) error {
	runCtx := cmd.Context()

	client, err := newIndexClient(cfg)
	if err != nil {
		return err
	}

	var backing resolver.Backing
	if cfg.Cache.Persistent {
		lookupCache, err := resolvecache.Open(runCtx, cfg.LookupCachePath(), resolvecache.Options{TTL: cfg.CacheTTL()})
		if err != nil {
			return err
		}
		defer lookupCache.Close()
		backing = lookupCache
	}
	cache := resolver.NewCache(backing, logger)
	feeds, err := resolver.NewFeedResolver(client, cache, logger)
	if err != nil {
		return err
	}
	episodes, err := resolver.NewEpisodeResolver(client, cache, cfg.Resolver.EpisodeScanMax, logger)
	if err != nil {
		return err
	}

	store, err := ctx.catalog(runCtx)
	if err != nil {
		return err
	}
	defer ctx.close()

	sched, err := scheduler.New(feeds, episodes, scheduler.Options{
		BatchSize:       cfg.Resolver.BatchSize,
		InterBatchDelay: cfg.InterBatchDelay(),
		MaxRetries:      cfg.Resolver.MaxRetries,
		BaseBackoff:     cfg.BaseBackoff(),
		MaxBackoff:      cfg.MaxBackoff(),
		Prior:           store,
		Normalize:       normalize.Options{PlaceholderDuration: cfg.Resolver.PlaceholderDurationSeconds},
	}, logger)
	if err != nil {
		return err
	}

	report, runErr := sched.RunItems(runCtx, items)
	if report.RunID == "" {
		return runErr
	}

	// Outcomes gathered before a cancellation are still stored.
	persistCtx := context.WithoutCancel(runCtx)
	unique := report.Unique()
	stored, err := store.UpsertTracks(persistCtx, unique)
	if err != nil {
		return err
	}
	mirrored := mirrorTracks(persistCtx, cfg, logger, unique)
	if err := store.RecordRun(persistCtx, catalog.Run{
		ID:        report.RunID,
		Started:   report.Started,
		Elapsed:   report.Elapsed,
		Batches:   len(report.Batches),
		Summary:   report.Summary,
		Cancelled: report.Cancelled,
	}); err != nil {
		return err
	}

	stats := cache.Stats()
	logger.Info("resolve run finished",
		logging.String(logging.FieldRunID, report.RunID),
		logging.Int("resolved", report.Summary.Resolved),
		logging.Int("unresolved", report.Summary.Unresolved),
		logging.Int("unfindable", report.Summary.Unfindable),
		logging.Int("cache_hits", stats.Hits),
		logging.Int("cache_misses", stats.Misses),
		logging.Int64("requests", client.Requests()),
		logging.Duration("elapsed", report.Elapsed),
	)

	if jsonOutput {
		if err := writeJSON(cmd, resolveOutput{
			RunID:     report.RunID,
			Summary:   report.Summary,
			Tracks:    report.Tracks,
			Stored:    stored,
			Mirrored:  mirrored,
			Reused:    report.Reused,
			Batches:   len(report.Batches),
			Elapsed:   report.Elapsed.Round(time.Millisecond).String(),
			Cancelled: report.Cancelled,
		}); err != nil {
			return err
		}
	} else {
		printResolveReport(cmd.OutOrStdout(), report, stored)
	}
	return runErr
}

func warnSkipped(logger *slog.Logger, feeds []feedReferences) {
	for _, feed := range feeds {
		for _, skipped := range feed.Document.Skipped {
			logging.WarnWithContext(logger, "remote item skipped", "reference_skipped",
				logging.String("feed_file", feed.Path),
				logging.Int("position", skipped.Position),
				logging.Reference(skipped.FeedGUID, skipped.ItemGUID),
				logging.Error(skipped.Reason),
				logging.String(logging.FieldErrorHint, "fix the feedGuid/itemGuid attributes in the feed"),
				logging.String(logging.FieldImpact, "reference not resolved"),
			)
		}
	}
}

func newIndexClient(cfg *config.Config) (*podcastindex.Client, error) {
	window := time.Duration(cfg.PodcastIndex.WindowSeconds) * time.Second
	return podcastindex.New(podcastindex.Config{
		APIKey:     cfg.PodcastIndex.APIKey,
		APISecret:  cfg.PodcastIndex.APISecret,
		UserAgent:  cfg.PodcastIndex.UserAgent,
		BaseURL:    cfg.PodcastIndex.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout()},
		Limiter:    podcastindex.NewRateLimiter(cfg.PodcastIndex.RequestsPerWindow, window),
	})
}

// mirrorTracks copies outcomes into Postgres when a DSN is configured.
// Mirror failures are logged; the local catalog stays authoritative.
func mirrorTracks(ctx context.Context, cfg *config.Config, logger *slog.Logger, tracks []track.ResolvedTrack) int {
	valid := make([]track.ResolvedTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.Reference().Validate() == nil {
			valid = append(valid, t)
		}
	}
	if cfg.Postgres.DSN == "" || len(valid) == 0 {
		return 0
	}
	sink, err := pgsink.Open(ctx, pgsink.Config{
		DSN:            cfg.Postgres.DSN,
		MaxConns:       cfg.Postgres.MaxConns,
		SimpleProtocol: cfg.Postgres.SimpleProtocol,
		Schema:         cfg.Postgres.Schema,
	}, logger)
	if err != nil {
		logging.WarnWithContext(logger, "postgres mirror unavailable", "pgsink_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check [postgres] dsn and that the server is reachable"),
			logging.String(logging.FieldImpact, "tracks stored locally only"),
		)
		return 0
	}
	defer sink.Close()
	written, err := sink.UpsertTracks(ctx, valid)
	if err != nil {
		logging.WarnWithContext(logger, "postgres mirror failed", "pgsink_upsert_failed",
			logging.Error(err),
			logging.Int("written", written),
			logging.String(logging.FieldImpact, "postgres mirror is behind the local catalog"),
		)
	}
	return written
}

func printResolveReport(out io.Writer, report scheduler.Report, stored catalog.UpsertStats) {
	colorize := shouldColorize(out)
	s := report.Summary
	fmt.Fprintln(out, renderTable(
		[]string{"Resolved", "Unresolved", "Unfindable", "Total"},
		[][]string{{itoa(s.Resolved), itoa(s.Unresolved), itoa(s.Unfindable), itoa(s.Total)}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))

	var rows [][]string
	for _, t := range report.Unique() {
		if t.Status == track.StatusResolved {
			continue
		}
		rows = append(rows, []string{statusLabel(t.Status, colorize), t.FeedGUID, t.ItemGUID, orDash(t.Error)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Status", "Feed GUID", "Item GUID", "Reason"}, rows, nil))
	}

	fmt.Fprintf(out, "Run %s: %d batches in %s, %d reused, stored %d new / %d updated / %d kept\n",
		report.RunID, len(report.Batches), report.Elapsed.Round(time.Millisecond),
		report.Reused, stored.Inserted, stored.Updated, stored.Skipped)
	if report.Cancelled {
		fmt.Fprintln(out, "Run cancelled; undispatched references were left unresolved")
	}
}
