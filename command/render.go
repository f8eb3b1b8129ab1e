package command

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"chatoverlay/badge"
	"chatoverlay/chat"
	"chatoverlay/ledger"
	"chatoverlay/session"

	"github.com/dustin/go-humanize"
)

// renderer prints the overlay timeline to a terminal. Entries arrive on the
// widget goroutine while command output comes from the input loop.
type renderer struct {
	mu       sync.Mutex
	out      io.Writer
	jsonMode bool
	lastAt   time.Time
	now      func() time.Time
}

func newRenderer(out io.Writer, jsonMode bool) *renderer {
	return &renderer{out: out, jsonMode: jsonMode, now: time.Now}
}

func (r *renderer) entry(e ledger.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if at, err := time.ParseInLocation(chat.TimeLayout, e.Message.CreatedAt, time.UTC); err == nil {
		r.lastAt = at
	}

	if r.jsonMode {
		r.encode(map[string]any{
			"type":        "message",
			"message":     e.Message,
			"day_key":     e.Stamp.DayKey,
			"time":        e.Stamp.Time,
			"day_divider": e.DayDivider,
			"day_label":   e.DayLabel,
			"mine":        e.IsMine,
			"mentioned":   e.Mentioned,
		})
		return
	}

	if e.DayDivider {
		fmt.Fprintf(r.out, "──── %s ────\n", e.DayLabel)
	}
	fmt.Fprintln(r.out, formatEntry(e))
}

func formatEntry(e ledger.Entry) string {
	clock := e.Stamp.Time
	if clock == "" {
		clock = "--:--"
	}
	who := e.Message.Username
	if who == "" {
		who = "user"
	}
	switch {
	case e.IsMine:
		who += " (you)"
	case e.Mentioned:
		who = "@" + who
	}
	return fmt.Sprintf("[%s] %s: %s", clock, who, e.Message.Message)
}

func (r *renderer) badge(b badge.Badge) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.jsonMode {
		r.encode(map[string]any{"type": "badge", "badge": b})
		return
	}
	fmt.Fprintln(r.out, formatBadge(b))
}

func formatBadge(b badge.Badge) string {
	if !b.Visible {
		return "● all caught up"
	}
	return fmt.Sprintf("● %d unread", b.Count)
}

func (r *renderer) state(st session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.jsonMode {
		r.encode(map[string]any{"type": "state", "state": st})
		return
	}
	if !st.Bound {
		fmt.Fprintln(r.out, "not bound to a room yet")
		return
	}
	panel := "closed"
	if st.PanelOpen {
		panel = "open"
	}
	last := "never"
	if !r.lastAt.IsZero() {
		last = humanize.RelTime(r.lastAt, r.now(), "ago", "from now")
	}
	fmt.Fprintf(r.out, "room %d, panel %s, %d unread, last id %d, last message %s\n",
		st.RoomID, panel, st.UnreadCount, st.LastAppliedID, last)
}

func (r *renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *renderer) encode(v any) {
	if err := json.NewEncoder(r.out).Encode(v); err != nil {
		fmt.Fprintf(r.out, "encode error: %v\n", err)
	}
}
