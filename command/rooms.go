package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRoomsCmd creates the rooms command.
func NewRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List chat rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			c, err := newClient(cfg)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			rooms, err := c.Rooms(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}

			out := cmd.OutOrStdout()
			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				return json.NewEncoder(out).Encode(rooms)
			}
			if len(rooms) == 0 {
				fmt.Fprintln(out, "No rooms.")
				return nil
			}
			for i, room := range rooms {
				marker := " "
				if i == 0 {
					marker = "*" // the room the overlay binds to
				}
				fmt.Fprintf(out, "%s %4d  %s\n", marker, room.ID, room.Name)
			}
			return nil
		},
	}
}
