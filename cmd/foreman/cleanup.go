package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Garbage-collect old finished sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge, _ := cmd.Flags().GetString("max-age")

		var resp struct {
			Removed int `json:"removed"`
		}
		body := map[string]string{"maxAge": maxAge}
		if err := newAPIClient().post("/api/cleanup", body, &resp); err != nil {
			return err
		}
		fmt.Printf("Removed %d session(s).\n", resp.Removed)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().String("max-age", "24h", "Minimum idle age before a finished session is removed")
	rootCmd.AddCommand(cleanupCmd)
}
