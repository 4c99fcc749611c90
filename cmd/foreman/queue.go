package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the build queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show queued and in-flight builds",
	RunE: func(cmd *cobra.Command, args []string) error {
		var qs queue.Status
		if err := newAPIClient().get("/api/queue", &qs); err != nil {
			return err
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		if qs.Current != nil {
			fmt.Printf("▶ %s (building)\n", qs.Current.Key())
		}
		if qs.Current == nil && len(qs.Queued) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}
		for i, job := range qs.Queued {
			fmt.Printf("%d. %s %s\n", i+1, job.Key(),
				gray(fmt.Sprintf("(%s, queued %s ago)", job.Trigger,
					time.Since(job.EnqueuedAt).Round(time.Second))))
		}
		return nil
	},
}

var queueAddCmd = &cobra.Command{
	Use:   "add <repo> <branch>",
	Short: "Enqueue a build",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Key string `json:"key"`
		}
		job := queue.BuildJob{Repo: args[0], Branch: args[1], Trigger: queue.TriggerManual}
		if err := newAPIClient().post("/api/queue", job, &resp); err != nil {
			return err
		}
		fmt.Printf("Enqueued %s\n", resp.Key)
		return nil
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <repo> <branch>",
	Short: "Remove a queued build",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"repo": args[0], "branch": args[1]}
		if err := newAPIClient().post("/api/queue/remove", body, nil); err != nil {
			return err
		}
		fmt.Printf("Removed %s#%s\n", args[0], args[1])
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all queued builds",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Cleared int `json:"cleared"`
		}
		if err := newAPIClient().delete("/api/queue", &resp); err != nil {
			return err
		}
		fmt.Printf("Cleared %d job(s).\n", resp.Cleared)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd, queueAddCmd, queueRemoveCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
