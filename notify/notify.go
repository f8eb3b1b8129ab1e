// Package notify delivers desktop notifications for mentions, honouring a
// browser-style permission model: undetermined, granted or denied.
package notify

import (
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"chatoverlay/ledger"
)

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a configuration value onto a Permission. Unknown
// values are treated as undetermined.
func ParsePermission(s string) Permission {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted", "yes", "on", "true":
		return PermissionGranted
	case "denied", "no", "off", "false":
		return PermissionDenied
	default:
		return PermissionDefault
	}
}

type Notifier interface {
	Permission() Permission
	RequestPermission() Permission
	Notify(title, body string) error
}

const (
	mentionTitle  = "Mention in chat"
	maxBodyLength = 100
)

// Gate forwards mentions to a Notifier. While permission is undetermined the
// first mention triggers one permission request and is itself dropped.
type Gate struct {
	notifier  Notifier
	logger    *log.Logger
	requested bool
	sent      int
}

func NewGate(n Notifier, logger *log.Logger) *Gate {
	return &Gate{notifier: n, logger: logger}
}

func (g *Gate) Applied(e ledger.Entry) {
	if !e.Mentioned || e.IsMine {
		return
	}
	g.Deliver(e)
}

func (g *Gate) Deliver(e ledger.Entry) {
	if g.notifier == nil {
		return
	}
	switch g.notifier.Permission() {
	case PermissionDefault:
		if !g.requested {
			g.requested = true
			g.notifier.RequestPermission()
		}
		return
	case PermissionGranted:
	default:
		return
	}

	if err := g.notifier.Notify(mentionTitle, Body(e)); err != nil {
		if g.logger != nil {
			g.logger.Printf("notification for message %d failed: %v", e.Message.ID, err)
		}
		return
	}
	g.sent++
}

// Sent is the number of notifications handed to the notifier.
func (g *Gate) Sent() int {
	return g.sent
}

// Body renders "username: message", whitespace collapsed and truncated.
func Body(e ledger.Entry) string {
	body := e.Message.Message
	if e.Message.Username != "" {
		body = fmt.Sprintf("%s: %s", e.Message.Username, body)
	}
	return truncate(body, maxBodyLength)
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}
