package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/events"
)

var tailCmd = &cobra.Command{
	Use:   "tail <session-id>",
	Short: "Watch a session's event stream in real time",
	Long: `Connect to the server's WebSocket stream for a session and print
events as they arrive. By default the full log is replayed first;
use --live to skip the replay.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		live, _ := cmd.Flags().GetBool("live")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return tailSession(ctx, args[0], !live)
	},
}

func init() {
	tailCmd.Flags().Bool("live", false, "Skip the replay of past events")
	rootCmd.AddCommand(tailCmd)
}

func tailSession(ctx context.Context, id string, catchUp bool) error {
	base := strings.TrimPrefix(newAPIClient().base, "http://")
	url := fmt.Sprintf("ws://%s/api/sessions/%s/stream?catchUp=%t", base, id, catchUp)

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Normal closure means the session ended.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("stream read: %w", err)
		}

		var fr struct {
			Index int                `json:"index"`
			Event events.StreamEvent `json:"event"`
		}
		if err := json.Unmarshal(data, &fr); err != nil {
			continue
		}
		displayEvent(fr.Event)
	}
}
