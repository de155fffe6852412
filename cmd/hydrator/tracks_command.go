package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hydrator/internal/catalog"
	"hydrator/internal/track"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool
	var showRuns bool
	var runLimit int

	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List stored tracks and their resolution status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.catalog(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			if showRuns {
				runs, err := store.Runs(cmd.Context(), runLimit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runs)
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			}

			filter := catalog.TrackFilter{}
			for _, raw := range statuses {
				for _, part := range strings.Split(raw, ",") {
					status, err := track.ParseStatus(part)
					if err != nil {
						return err
					}
					filter.Statuses = append(filter.Statuses, status)
				}
			}
			tracks, err := store.ListTracks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				if tracks == nil {
					tracks = []track.ResolvedTrack{}
				}
				return writeJSON(cmd, tracks)
			}
			printTracks(cmd.OutOrStdout(), tracks)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (resolved, unresolved, unfindable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showRuns, "runs", false, "Show resolve run history instead of tracks")
	cmd.Flags().IntVar(&runLimit, "limit", 20, "Number of runs shown with --runs")
	return cmd
}

func printTracks(out io.Writer, tracks []track.ResolvedTrack) {
	if len(tracks) == 0 {
		fmt.Fprintln(out, "No tracks stored")
		return
	}
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			statusLabel(t.Status, colorize),
			orDash(t.Title),
			orDash(t.Artist),
			formatDuration(t.DurationSeconds, t.DurationSource),
			t.ItemGUID,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Status", "Title", "Artist", "Length", "Item GUID"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	summary := track.Summarize(tracks)
	fmt.Fprintf(out, "%d tracks: %d resolved, %d unresolved, %d unfindable\n",
		summary.Total, summary.Resolved, summary.Unresolved, summary.Unfindable)
}

func printRuns(out io.Writer, runs []catalog.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Started.Local().Format("2006-01-02 15:04:05"),
			run.Elapsed.Round(time.Millisecond).String(),
			itoa(run.Summary.Resolved),
			itoa(run.Summary.Unresolved),
			itoa(run.Summary.Unfindable),
			yesNo(run.Cancelled),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "Elapsed", "Resolved", "Unresolved", "Unfindable", "Cancelled"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}
