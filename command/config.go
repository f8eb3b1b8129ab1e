package command

import (
	"log"
	"os"

	"chatoverlay/client"
	"chatoverlay/config"
	"chatoverlay/datekey"
	"chatoverlay/db"
	"chatoverlay/widget"

	"github.com/spf13/cobra"
)

// loadConfig reads the config file and applies the persistent flag
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("server") {
		cfg.Widget.Server, _ = cmd.Flags().GetString("server")
	}
	if cmd.Flags().Changed("base-path") {
		basePath, _ := cmd.Flags().GetString("base-path")
		cfg.Widget.BasePath = basePath
		cfg.Server.BasePath = basePath
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Widget.Debug = true
	}
	return cfg, nil
}

func databaseConfig(cfg *config.Config) db.DatabaseConfig {
	return db.DatabaseConfig{
		Type:     cfg.Database.Type,
		Database: cfg.Database.Database,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	}
}

func widgetConfig(cfg *config.Config) widget.Config {
	w := cfg.Widget
	return widget.Config{
		Server:         w.Server,
		BasePath:       w.BasePath,
		Username:       w.Username,
		MentionAliases: w.MentionAliases,
		PollInterval:   w.PollInterval,
		PollPolicy:     widget.PollPolicy(w.PollPolicy),
		ReconnectDelay: w.ReconnectDelay,
		Notifications:  w.Notifications,
		Labels: datekey.Labels{
			Today:     w.Labels.Today,
			Yesterday: w.Labels.Yesterday,
		},
	}
}

func newClient(cfg *config.Config) (*client.Client, error) {
	return client.New(cfg.Widget.Server, cfg.Widget.BasePath)
}

func newLogger(tag string) *log.Logger {
	return log.New(os.Stderr, "["+tag+"] ", log.LstdFlags)
}
