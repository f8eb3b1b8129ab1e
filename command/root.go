package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "chatoverlay"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Chat overlay server and terminal client",
		Long:          "chatoverlay runs the chat backend and a terminal overlay that keeps one room in sync over push and polling.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "config file (default: config.yaml in . or ./config)")
	cmd.PersistentFlags().String("server", "", "chat server url, e.g. http://localhost:3000")
	cmd.PersistentFlags().String("base-path", "", "path the chat api is mounted under")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "log transport retries")

	cmd.AddCommand(
		NewServeCmd(),
		NewWatchCmd(),
		NewSendCmd(),
		NewRoomsCmd(),
		NewStressCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
