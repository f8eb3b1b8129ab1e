// Package session holds the per-activation sync state of one overlay
// instance. A State is owned by a single event loop and is not safe for
// concurrent use.
package session

import (
	"github.com/samber/mo"
)

type State struct {
	roomID             mo.Option[int64]
	LastAppliedID      int64
	PanelOpen          bool
	UnreadCount        int
	LastRenderedDayKey mo.Option[string]
}

func New() *State {
	return &State{
		roomID:             mo.None[int64](),
		LastRenderedDayKey: mo.None[string](),
	}
}

// RoomID returns the bound room, if any.
func (s *State) RoomID() mo.Option[int64] {
	return s.roomID
}

// Bind fixes the room for the rest of the session. It reports false when a
// different room is already bound.
func (s *State) Bind(roomID int64) bool {
	if current, ok := s.roomID.Get(); ok {
		return current == roomID
	}
	s.roomID = mo.Some(roomID)
	return true
}

func (s *State) Bound() bool {
	return s.roomID.IsPresent()
}

// Snapshot is a copy of State safe to hand to other goroutines.
type Snapshot struct {
	RoomID             int64  `json:"room_id"`
	Bound              bool   `json:"bound"`
	LastAppliedID      int64  `json:"last_applied_id"`
	PanelOpen          bool   `json:"panel_open"`
	UnreadCount        int    `json:"unread_count"`
	LastRenderedDayKey string `json:"last_rendered_day_key"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		RoomID:             s.roomID.OrEmpty(),
		Bound:              s.roomID.IsPresent(),
		LastAppliedID:      s.LastAppliedID,
		PanelOpen:          s.PanelOpen,
		UnreadCount:        s.UnreadCount,
		LastRenderedDayKey: s.LastRenderedDayKey.OrEmpty(),
	}
}
