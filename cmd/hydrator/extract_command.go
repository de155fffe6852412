package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newExtractCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "extract FEED.xml...",
		Short:       "List podcast:remoteItem references found in feed files",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			feeds := make([]feedReferences, 0, len(args))
			for _, path := range args {
				feed, err := parseFeedFile(path)
				if err != nil {
					return err
				}
				feeds = append(feeds, feed)
			}

			if jsonOutput {
				docs := make(map[string]any, len(feeds))
				for _, feed := range feeds {
					docs[feed.Path] = feed.Document
				}
				return writeJSON(cmd, docs)
			}

			out := cmd.OutOrStdout()
			for _, feed := range feeds {
				doc := feed.Document
				title := doc.Title
				if title == "" {
					title = feed.Path
				}
				fmt.Fprintf(out, "%s (medium: %s, %d references)\n", title, orDash(doc.Medium), len(doc.References))
				if len(doc.References) > 0 {
					rows := make([][]string, 0, len(doc.References))
					for _, ref := range doc.References {
						rows = append(rows, []string{
							strconv.Itoa(ref.Position),
							ref.FeedGUID,
							ref.ItemGUID,
							orDash(ref.Medium),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"#", "Feed GUID", "Item GUID", "Medium"},
						rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
					))
				}
				for _, skipped := range doc.Skipped {
					fmt.Fprintf(out, "  skipped #%d: %v\n", skipped.Position, skipped.Reason)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
