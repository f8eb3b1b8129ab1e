// Package badge keeps the unread counter shown on the overlay launcher.
package badge

import (
	"chatoverlay/api"
	"chatoverlay/ledger"
	"chatoverlay/session"
)

// Badge is the visible launcher state. A zero count hides the badge.
type Badge struct {
	Count    int  `json:"count"`
	Visible  bool `json:"visible"`
	Emphasis bool `json:"emphasis"`
}

type Tracker struct {
	state    *session.State
	onChange func(Badge)
	last     Badge
}

func NewTracker(state *session.State, onChange func(Badge)) *Tracker {
	return &Tracker{state: state, onChange: onChange}
}

// OnApplied counts a message as unread when the panel is closed, someone
// else wrote it, and it did not arrive as part of a silent catch-up.
func (t *Tracker) OnApplied(_ api.Message, isMine, isInitialLoad bool) {
	if t.state.PanelOpen || isMine || isInitialLoad {
		return
	}
	t.state.UnreadCount++
	t.publish()
}

// Applied lets the tracker sit directly on a ledger.
func (t *Tracker) Applied(e ledger.Entry) {
	t.OnApplied(e.Message, e.IsMine, e.Initial)
}

func (t *Tracker) OnPanelOpened() {
	t.state.PanelOpen = true
	t.state.UnreadCount = 0
	t.publish()
}

func (t *Tracker) OnPanelClosed() {
	t.state.PanelOpen = false
}

func (t *Tracker) Badge() Badge {
	n := t.state.UnreadCount
	if n <= 0 {
		return Badge{}
	}
	return Badge{Count: n, Visible: true, Emphasis: true}
}

func (t *Tracker) publish() {
	b := t.Badge()
	if b == t.last {
		return
	}
	t.last = b
	if t.onChange != nil {
		t.onChange(b)
	}
}
