package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		body := map[string]string{"reason": reason}
		if err := newAPIClient().post("/api/sessions/"+args[0]+"/cancel", body, nil); err != nil {
			return err
		}
		fmt.Printf("Cancelled session %s\n", args[0])
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringP("reason", "r", "", "Reason recorded in the session summary")
	rootCmd.AddCommand(cancelCmd)
}
