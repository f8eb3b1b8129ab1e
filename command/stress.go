package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatoverlay/api"
	"chatoverlay/chat"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewStressCmd creates the stress command.
func NewStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Load the server with concurrent senders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			c, err := newClient(cfg)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			users, _ := cmd.Flags().GetInt("users")
			perUser, _ := cmd.Flags().GetInt("messages")
			roomID, _ := cmd.Flags().GetInt64("room")

			send := func(ctx context.Context, username, body string) error {
				_, err := c.Send(ctx, api.SendMessageRequest{RoomID: roomID, Username: username, Message: body})
				return err
			}
			result := chat.StressChat(cmd.Context(), send, users, perUser)

			out := cmd.OutOrStdout()
			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				return json.NewEncoder(out).Encode(result)
			}
			fmt.Fprintf(out, "Sent %s of %s messages in %v (%.2f msg/sec), %s failed\n",
				humanize.Comma(result.Success), humanize.Comma(int64(result.Total)),
				result.Duration.Round(time.Millisecond), result.MessagesPerSec, humanize.Comma(result.Failed))
			return nil
		},
	}

	cmd.Flags().Int("users", 50, "concurrent senders")
	cmd.Flags().Int("messages", 20, "messages per sender")
	cmd.Flags().Int64("room", 0, "room id (default: the server's first room)")
	return cmd
}
