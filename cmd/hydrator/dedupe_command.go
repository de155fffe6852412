package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hydrator/internal/dedupe"
	"hydrator/internal/logging"
)

type dedupeOutput struct {
	DryRun         bool                   `json:"dryRun"`
	Removed        []dedupe.Removal       `json:"removed"`
	DroppedEntries []string               `json:"droppedEntries"`
	NearDuplicates []dedupe.NearDuplicate `json:"nearDuplicates,omitempty"`
}

func newDedupeCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var near int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Merge duplicate tracks across catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("near") {
				near = cfg.Dedupe.NearDuplicateDistance
			}

			return ctx.withWriterLock(func() error {
				store, err := ctx.catalog(cmd.Context())
				if err != nil {
					return err
				}
				defer ctx.close()

				entries, err := store.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				merger := dedupe.New(dedupe.Options{
					KeyMode: cfg.Dedupe.KeyMode,
					Weights: dedupe.Weights{
						Audio:    cfg.Dedupe.AudioWeight,
						Artist:   cfg.Dedupe.ArtistWeight,
						Optional: cfg.Dedupe.OptionalWeight,
					},
				}, logger)
				result := merger.Dedupe(entries)
				if !dryRun && result.Changed() {
					if err := store.ApplyDedupe(cmd.Context(), result); err != nil {
						return err
					}
					logger.Info("dedupe applied",
						logging.Int("removed", len(result.Removed)),
						logging.Int("dropped_entries", len(result.DroppedEntries)),
					)
				}
				nearDups := dedupe.NearDuplicates(result.Entries, near)

				if jsonOutput {
					return writeJSON(cmd, dedupeOutput{
						DryRun:         dryRun,
						Removed:        result.Removed,
						DroppedEntries: result.DroppedEntries,
						NearDuplicates: nearDups,
					})
				}
				printDedupe(cmd.OutOrStdout(), result, nearDups, dryRun)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report duplicates without changing the catalog")
	cmd.Flags().IntVar(&near, "near", 0, "Report titles within this edit distance (0 disables)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printDedupe(out io.Writer, result dedupe.Result, near []dedupe.NearDuplicate, dryRun bool) {
	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	if !result.Changed() {
		fmt.Fprintln(out, "No duplicates found")
	} else {
		rows := make([][]string, 0, len(result.Removed))
		for _, removal := range result.Removed {
			rows = append(rows, []string{
				removal.Track.Title,
				removal.Track.Artist,
				removal.Entry,
				removal.KeptEntry,
			})
		}
		fmt.Fprintln(out, renderTable([]string{"Title", "Artist", "From", "Kept In"}, rows, nil))
		fmt.Fprintf(out, "%s %d duplicate tracks", verb, len(result.Removed))
		if len(result.DroppedEntries) > 0 {
			fmt.Fprintf(out, " and %d emptied entries", len(result.DroppedEntries))
		}
		fmt.Fprintln(out)
	}

	if len(near) == 0 {
		return
	}
	rows := make([][]string, 0, len(near))
	for _, pair := range near {
		rows = append(rows, []string{pair.A.Title, pair.B.Title, pair.A.Artist, itoa(pair.Distance)})
	}
	fmt.Fprintln(out, "Possible near duplicates (not merged):")
	fmt.Fprintln(out, renderTable(
		[]string{"Title", "Similar To", "Artist", "Distance"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
}
