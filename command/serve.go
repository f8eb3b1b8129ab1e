package command

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chatoverlay/chat"
	"chatoverlay/db"
	"chatoverlay/server"
	"chatoverlay/websocket"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetString("port")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := db.InitDB(ctx, databaseConfig(cfg))
			if err != nil {
				return writeCommandError(cmd, fmt.Errorf("could not init database: %w", err))
			}

			store, err := chat.NewStore(pool)
			if err != nil {
				pool.Close()
				return writeCommandError(cmd, err)
			}
			created, err := store.EnsureDefaultRoom(ctx, cfg.Chat.DefaultRoom)
			if err != nil {
				pool.Close()
				return writeCommandError(cmd, err)
			}

			hub := websocket.NewHub(log.New(os.Stdout, "[WS] ", log.LstdFlags))
			go hub.Run(ctx)

			mux := server.NewRouter(cfg, pool, hub)
			if created {
				mux.Logger.Printf("Created default room %q", cfg.Chat.DefaultRoom)
			}
			mux.Logger.Printf("Chat api mounted at %s", displayBase(cfg.Server.BasePath))

			return server.Run(ctx, pool, mux, cfg.Server.Port, cfg.Server.Name)
		},
	}

	cmd.Flags().String("port", "", "port to listen on (overrides server.port)")
	return cmd
}

func displayBase(basePath string) string {
	if basePath == "" {
		return "/"
	}
	return basePath
}
