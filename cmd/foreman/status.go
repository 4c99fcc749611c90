package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show active sessions and queue state",
	Long: `Display the running server's active sessions and build queue.

With a session ID, show that session's full status instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient()
		if len(args) == 1 {
			return showSessionStatus(client, args[0])
		}
		return showOverview(client)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showSessionStatus(client *apiClient, id string) error {
	var st session.Status
	if err := client.get("/api/sessions/"+id, &st); err != nil {
		return err
	}

	fmt.Printf("Session:   %s\n", st.ID)
	fmt.Printf("Mode:      %s\n", st.Mode)
	fmt.Printf("State:     %s\n", stateColor(st.State)(string(st.State)))
	fmt.Printf("Prompt:    %s\n", truncateString(st.Prompt, 100))
	fmt.Printf("Dir:       %s\n", st.WorkingDir)
	if st.CurrentPhase != "" {
		fmt.Printf("Phase:     %s\n", st.CurrentPhase)
	}
	fmt.Printf("Started:   %s (%s ago)\n",
		st.StartedAt.Format("2006-01-02 15:04:05"),
		time.Since(st.StartedAt).Round(time.Second))
	if len(st.FilesModified) > 0 {
		fmt.Printf("Files:     %d modified\n", len(st.FilesModified))
		for _, f := range st.FilesModified {
			fmt.Printf("  - %s\n", f)
		}
	}
	if st.SubagentsSpawned > 0 {
		fmt.Printf("Subagents: %d\n", st.SubagentsSpawned)
	}
	if st.Error != "" {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("Error:     %s\n", red(st.Error))
	}
	return nil
}

func showOverview(client *apiClient) error {
	var active []session.Status
	if err := client.get("/api/sessions", &active); err != nil {
		return err
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("%s\n", yellow("Active Sessions:"))
	if len(active) == 0 {
		fmt.Printf("  %s\n", gray("none"))
	}
	for _, st := range active {
		fmt.Printf("  %s %s  %s  %s\n",
			stateColor(st.State)("●"), st.ID, st.Mode,
			gray(truncateString(st.Prompt, 50)))
	}

	var qs queue.Status
	if err := client.get("/api/queue", &qs); err != nil {
		// The queue is optional server-side.
		return nil
	}
	fmt.Printf("\n%s\n", yellow("Build Queue:"))
	if qs.Current != nil {
		fmt.Printf("  ▶ %s (building)\n", qs.Current.Key())
	}
	if len(qs.Queued) == 0 && qs.Current == nil {
		fmt.Printf("  %s\n", gray("empty"))
	}
	for i, job := range qs.Queued {
		fmt.Printf("  %d. %s %s\n", i+1, job.Key(),
			gray(fmt.Sprintf("(queued %s ago)", time.Since(job.EnqueuedAt).Round(time.Second))))
	}
	return nil
}

func stateColor(s session.State) func(...any) string {
	switch s {
	case session.StateRunning:
		return color.New(color.FgGreen).SprintFunc()
	case session.StateCompleted:
		return color.New(color.FgGreen).SprintFunc()
	case session.StateFailed:
		return color.New(color.FgRed).SprintFunc()
	case session.StateCancelled:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgHiBlack).SprintFunc()
	}
}
