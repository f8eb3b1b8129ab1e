package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port       string `mapstructure:"port"`
		Host       string `mapstructure:"host"`
		Name       string `mapstructure:"name"`
		BasePath   string `mapstructure:"base_path"`
		CORSOrigin string `mapstructure:"cors_origin"`
	} `mapstructure:"server"`

	Database struct {
		Type     string `mapstructure:"type"`     // "sqlite3" or "postgres"
		Database string `mapstructure:"database"` // db name or file path
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		SSLMode  string `mapstructure:"ssl_mode"`
	} `mapstructure:"database"`

	Chat struct {
		PageSize          int    `mapstructure:"page_size"`
		MaxMessageLength  int    `mapstructure:"max_message_length"`
		MaxUsernameLength int    `mapstructure:"max_username_length"`
		DefaultUsername   string `mapstructure:"default_username"`
		DefaultRoom       string `mapstructure:"default_room"`
	} `mapstructure:"chat"`

	Webhooks struct {
		Secret   string `mapstructure:"secret"`
		Username string `mapstructure:"username"`
	} `mapstructure:"webhooks"`

	Widget Widget `mapstructure:"widget"`
}

// Widget configures the watching client.
type Widget struct {
	Server         string        `mapstructure:"server"`
	BasePath       string        `mapstructure:"base_path"`
	Username       string        `mapstructure:"username"`
	MentionAliases []string      `mapstructure:"mention_aliases"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollPolicy     string        `mapstructure:"poll_policy"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	Notifications  string        `mapstructure:"notifications"` // granted, denied or prompt
	Debug          bool          `mapstructure:"debug"`
	Labels         struct {
		Today     string `mapstructure:"today"`
		Yesterday string `mapstructure:"yesterday"`
	} `mapstructure:"labels"`
}

// Load reads config.yaml from "." or "./config" (or file, when set),
// layered under CHAT_* environment variables and the defaults.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindAliases(v); err != nil {
		return nil, err
	}

	setDefaults(v)

	// Read config file (optional - fallback to env vars)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// bindAliases keeps the unprefixed variables of the node deployment working.
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"server.port":        {"CHAT_SERVER_PORT", "PORT"},
		"server.base_path":   {"CHAT_SERVER_BASE_PATH", "BASE_PATH"},
		"server.cors_origin": {"CHAT_SERVER_CORS_ORIGIN", "CHAT_CORS_ORIGIN"},
		"database.database":  {"CHAT_DATABASE_DATABASE", "CHAT_DB_PATH"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.name", "CHAT")
	v.SetDefault("server.base_path", "/chat")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("database.type", "sqlite3")
	v.SetDefault("database.database", "chat.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("chat.page_size", 200)
	v.SetDefault("chat.max_message_length", 2000)
	v.SetDefault("chat.max_username_length", 64)
	v.SetDefault("chat.default_username", "user")
	v.SetDefault("chat.default_room", "General")
	v.SetDefault("webhooks.username", "bot")
	v.SetDefault("widget.server", "http://localhost:3000")
	v.SetDefault("widget.base_path", "/chat")
	v.SetDefault("widget.poll_interval", "3s")
	v.SetDefault("widget.poll_policy", "background")
	v.SetDefault("widget.reconnect_delay", "5s")
	v.SetDefault("widget.notifications", "prompt")
	v.SetDefault("widget.labels.today", "Today")
	v.SetDefault("widget.labels.yesterday", "Yesterday")
}

func (c *Config) validate() error {
	switch c.Widget.PollPolicy {
	case "background", "panel":
	default:
		return fmt.Errorf("invalid widget.poll_policy %q (want background or panel)", c.Widget.PollPolicy)
	}
	switch c.Widget.Notifications {
	case "granted", "denied", "prompt":
	default:
		return fmt.Errorf("invalid widget.notifications %q (want granted, denied or prompt)", c.Widget.Notifications)
	}
	if c.Widget.PollInterval <= 0 {
		return fmt.Errorf("widget.poll_interval must be positive")
	}
	if c.Chat.PageSize <= 0 {
		return fmt.Errorf("chat.page_size must be positive")
	}
	return nil
}
