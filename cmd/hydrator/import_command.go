package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hydrator/internal/catalog"
	"hydrator/internal/normalize"
	"hydrator/internal/track"
)

// newImportCommand stores the tracks a feed hosts itself as an album entry,
// so remote items pointing at the same songs can be merged by dedupe.
func newImportCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "import FEED.xml...",
		Short: "Import the tracks hosted by album feeds into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := normalize.Options{PlaceholderDuration: cfg.Resolver.PlaceholderDurationSeconds}

			entries := make([]track.CatalogEntry, 0, len(args))
			for _, path := range args {
				feed, err := parseFeedFile(path)
				if err != nil {
					return err
				}
				entry, err := albumEntry(feed, opts)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
			}

			return ctx.withWriterLock(func() error {
				store, err := ctx.catalog(cmd.Context())
				if err != nil {
					return err
				}
				defer ctx.close()

				results := make(map[string]catalog.UpsertStats, len(entries))
				for _, entry := range entries {
					stats, err := store.AddEntry(cmd.Context(), entry)
					if err != nil {
						return err
					}
					results[entry.ID] = stats
				}
				if jsonOutput {
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				for _, entry := range entries {
					stats := results[entry.ID]
					fmt.Fprintf(out, "Imported %s by %s: %d tracks (%d new, %d updated, %d kept)\n",
						entry.Title, entry.Artist, len(entry.Tracks), stats.Inserted, stats.Updated, stats.Skipped)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func albumEntry(feed feedReferences, opts normalize.Options) (track.CatalogEntry, error) {
	record, items := feed.Document.Records()
	if record.FeedGUID == "" {
		return track.CatalogEntry{}, fmt.Errorf("%s: feed has no podcast:guid", feed.Path)
	}
	if len(items) == 0 {
		return track.CatalogEntry{}, fmt.Errorf("%s: feed hosts no items", feed.Path)
	}
	tracks := make([]track.ResolvedTrack, 0, len(items))
	for i, item := range items {
		if item.ItemGUID == "" {
			continue
		}
		tracks = append(tracks, normalize.Track(record, item, i+1, opts))
	}
	artist := record.Author
	if artist == "" {
		artist = track.UnknownArtist
	}
	entry := track.CatalogEntry{
		Title:    record.Title,
		Artist:   artist,
		FeedGUID: record.FeedGUID,
		Kind:     track.KindAlbum,
		Tracks:   tracks,
	}
	entry.ID = catalog.EntryID(entry.Kind, entry.Title, entry.Artist, entry.FeedGUID)
	return entry, nil
}
