package widget

import (
	"os"
	"os/user"
	"strings"
	"time"

	"chatoverlay/client"
	"chatoverlay/datekey"
)

// PollPolicy decides when the pull channel runs.
type PollPolicy string

const (
	// PollBackground polls from binding until dispose, panel open or not.
	PollBackground PollPolicy = "background"
	// PollPanel polls only while the panel is open.
	PollPanel PollPolicy = "panel"
)

const (
	DefaultPollInterval   = 3 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	fallbackUsername      = "user"
)

type Config struct {
	Server         string
	BasePath       string
	Username       string // overrides detection
	MentionAliases []string
	PollInterval   time.Duration
	PollPolicy     PollPolicy
	ReconnectDelay time.Duration
	Labels         datekey.Labels
	Notifications  string // granted, denied or prompt
}

func (c Config) withDefaults() Config {
	if c.BasePath == "" {
		c.BasePath = client.DefaultBasePath
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.PollPolicy != PollPanel {
		c.PollPolicy = PollBackground
	}
	return c
}

// ResolveUsername picks the identity used for self-detection and mentions:
// the configured name, then the login of the current OS user, then "user".
func ResolveUsername(configured string) string {
	if name := strings.TrimSpace(configured); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		if name := strings.TrimSpace(u.Username); name != "" {
			// DOMAIN\login on windows
			if _, login, ok := strings.Cut(name, `\`); ok {
				return login
			}
			return name
		}
	}
	if name := strings.TrimSpace(os.Getenv("USER")); name != "" {
		return name
	}
	return fallbackUsername
}
