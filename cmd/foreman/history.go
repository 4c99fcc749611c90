package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/session"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently finished sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		var entries []session.HistoryEntry
		path := "/api/history"
		if limit > 0 {
			path = fmt.Sprintf("/api/history?limit=%d", limit)
		}
		if err := newAPIClient().get(path, &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No finished sessions.")
			return nil
		}

		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeaderAlignment(tw.AlignLeft),
			tablewriter.WithRendition(tw.Rendition{
				Borders:  tw.BorderNone,
				Settings: tw.Settings{Lines: tw.LinesNone, Separators: tw.SeparatorsNone},
			}),
			tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
		)
		table.Header([]string{"ID", "MODE", "STATE", "DURATION", "FILES", "SUMMARY"})
		for _, e := range entries {
			_ = table.Append([]string{
				shortID(e.ID),
				string(e.Mode),
				string(e.State),
				e.Duration.Round(time.Second).String(),
				fmt.Sprintf("%d", len(e.FilesModified)),
				truncateString(e.Summary, 60),
			})
		}
		return table.Render()
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum entries to show")
	rootCmd.AddCommand(historyCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
