package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/events"
	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/session"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console for the orchestrator",
	Long: `Start an interactive shell against a running foreman server.

Type 'help' in the console for available commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &console{client: newAPIClient()}
		return c.run()
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

type console struct {
	client *apiClient
}

func (c *console) run() error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("foreman> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("foreman console, connected to %s\n", c.client.base)
	fmt.Println("Type 'help' for commands, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println("Goodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := c.dispatch(line); err != nil {
			if err == io.EOF {
				fmt.Println("Goodbye!")
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

func (c *console) dispatch(line string) error {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "help":
		c.printHelp()
		return nil
	case "exit", "quit":
		return io.EOF
	case "sessions", "ls":
		return showOverview(c.client)
	case "status":
		if len(args) != 1 {
			return fmt.Errorf("usage: status <session-id>")
		}
		return showSessionStatus(c.client, args[0])
	case "start":
		if len(args) == 0 {
			return fmt.Errorf("usage: start <prompt...>")
		}
		return c.startSession(strings.Join(args, " "))
	case "events":
		if len(args) < 1 {
			return fmt.Errorf("usage: events <session-id> [after]")
		}
		after := -1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("after must be an integer")
			}
			after = n
		}
		return c.showEvents(args[0], after)
	case "cancel":
		if len(args) < 1 {
			return fmt.Errorf("usage: cancel <session-id> [reason...]")
		}
		body := map[string]string{"reason": strings.Join(args[1:], " ")}
		if err := c.client.post("/api/sessions/"+args[0]+"/cancel", body, nil); err != nil {
			return err
		}
		fmt.Println("Cancelled.")
		return nil
	case "tail":
		if len(args) != 1 {
			return fmt.Errorf("usage: tail <session-id>")
		}
		return tailSession(context.Background(), args[0], true)
	case "history":
		var entries []session.HistoryEntry
		if err := c.client.get("/api/history?limit=10", &entries); err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-9s %-9s %s\n",
				shortID(e.ID), e.Mode, e.State, truncateString(e.Summary, 60))
		}
		return nil
	case "build":
		if len(args) != 2 {
			return fmt.Errorf("usage: build <repo> <branch>")
		}
		job := queue.BuildJob{Repo: args[0], Branch: args[1], Trigger: queue.TriggerManual}
		if err := c.client.post("/api/queue", job, nil); err != nil {
			return err
		}
		fmt.Printf("Enqueued %s#%s\n", args[0], args[1])
		return nil
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

func (c *console) startSession(prompt string) error {
	var resp struct {
		SessionID string `json:"sessionId"`
		StreamURL string `json:"streamUrl"`
	}
	req := session.Request{Mode: session.ModeTask, Prompt: prompt}
	if err := c.client.post("/api/sessions", req, &resp); err != nil {
		return err
	}
	fmt.Printf("Started session %s\n", resp.SessionID)
	return nil
}

func (c *console) showEvents(id string, after int) error {
	var evs []events.StreamEvent
	path := fmt.Sprintf("/api/sessions/%s/events?after=%d", id, after)
	if err := c.client.get(path, &evs); err != nil {
		return err
	}
	for _, ev := range evs {
		displayEvent(ev)
	}
	return nil
}

func (c *console) printHelp() {
	fmt.Println(`Commands:
  sessions             List active sessions and the build queue
  start <prompt>       Start a task session
  status <id>          Show one session's status
  events <id> [after]  Print a session's event log
  tail <id>            Follow a session's live events (Ctrl+C to stop)
  cancel <id> [reason] Cancel a running session
  history              Show recently finished sessions
  build <repo> <br>    Enqueue a build
  help                 Show this help
  exit                 Leave the console`)
}
