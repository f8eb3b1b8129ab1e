package command

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatoverlay/client"
	"chatoverlay/notify"
	"chatoverlay/widget"

	"github.com/spf13/cobra"
)

const watchHelp = `commands:
  /open      open the panel (clears the badge)
  /close     close the panel
  /refresh   fetch new messages now
  /state     show sync state
  /quit      stop watching
anything else is sent as a message
`

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the chat room in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			wcfg := widgetConfig(cfg)
			if cmd.Flags().Changed("as") {
				wcfg.Username, _ = cmd.Flags().GetString("as")
			}
			if cmd.Flags().Changed("poll-policy") {
				policy, _ := cmd.Flags().GetString("poll-policy")
				wcfg.PollPolicy = widget.PollPolicy(policy)
			}

			base, err := client.JoinBase(wcfg.Server, wcfg.BasePath)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			jsonMode, _ := cmd.Flags().GetBool("json")
			readOnly, _ := cmd.Flags().GetBool("read-only")
			startOpen, _ := cmd.Flags().GetBool("open")

			out := cmd.OutOrStdout()
			r := newRenderer(out, jsonMode)
			broker := newLineBroker(out)

			var prompter notify.Prompter = broker.Prompt
			if readOnly {
				prompter = notify.TerminalPrompter(cmd.InOrStdin(), out)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h, err := widget.Connect(ctx, wcfg,
				widget.WithLogger(newLogger("WIDGET")),
				widget.WithDebug(cfg.Widget.Debug),
				widget.WithPrompter(prompter),
				widget.WithMessageHandler(r.entry),
				widget.WithBadgeHandler(r.badge),
			)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer h.Dispose()

			if !jsonMode {
				r.printf("--- watching %s as %s (Ctrl+C to stop, /help for commands) ---\n", base, h.Identity())
			}
			if startOpen {
				h.Open()
			}

			if readOnly {
				<-ctx.Done()
				return nil
			}

			go broker.run(cmd.InOrStdin())
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-broker.lines:
					if !ok {
						return nil
					}
					if quit := handleWatchLine(ctx, h, r, line); quit {
						return nil
					}
				}
			}
		},
	}

	cmd.Flags().String("as", "", "username (default: widget.username or the OS user)")
	cmd.Flags().String("poll-policy", "", "background or panel (overrides widget.poll_policy)")
	cmd.Flags().Bool("open", false, "start with the panel open")
	cmd.Flags().Bool("read-only", false, "do not read messages or commands from stdin")
	return cmd
}

func handleWatchLine(ctx context.Context, h *widget.Handle, r *renderer, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
	case "/open":
		h.Open()
	case "/close":
		h.Close()
	case "/refresh":
		h.Refresh()
	case "/state":
		r.state(h.State())
	case "/help":
		r.printf("%s", watchHelp)
	case "/quit", "/exit":
		return true
	default:
		if _, err := h.Send(ctx, line); err != nil {
			if errors.Is(err, widget.ErrNoRoom) {
				r.printf("Error: the server has no rooms yet\n")
			} else {
				r.printf("Error: %v\n", err)
			}
		}
	}
	return false
}
