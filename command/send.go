package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatoverlay/api"
	"chatoverlay/widget"

	"github.com/spf13/cobra"
)

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Post a message to a room",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			c, err := newClient(cfg)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			roomID, _ := cmd.Flags().GetInt64("room")
			username, _ := cmd.Flags().GetString("as")
			if username == "" {
				username = widget.ResolveUsername(cfg.Widget.Username)
			}

			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return writeCommandError(cmd, widget.ErrEmptyMessage)
			}

			msg, err := c.Send(cmd.Context(), api.SendMessageRequest{
				RoomID:   roomID,
				Username: username,
				Message:  text,
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}

			out := cmd.OutOrStdout()
			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				return json.NewEncoder(out).Encode(msg)
			}
			fmt.Fprintf(out, "[#%d] sent to room %d as %s\n", msg.ID, msg.RoomID, msg.Username)
			return nil
		},
	}

	cmd.Flags().Int64("room", 0, "room id (default: the server's first room)")
	cmd.Flags().String("as", "", "username to post as (default: widget.username or the OS user)")
	return cmd
}
