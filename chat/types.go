package chat

import (
	"context"
	"errors"
	"time"

	"chatoverlay/api"
)

var ErrNoRoom = errors.New("no chat room exists")

// TimeLayout is the wire format of Message.CreatedAt.
const TimeLayout = "2006-01-02 15:04:05"

type Limits struct {
	PageSize          int
	MaxMessageLength  int
	MaxUsernameLength int
	DefaultUsername   string
}

func DefaultLimits() Limits {
	return Limits{
		PageSize:          200,
		MaxMessageLength:  2000,
		MaxUsernameLength: 64,
		DefaultUsername:   "user",
	}
}

type Stats struct {
	Rooms         int64 `json:"rooms"`
	Messages      int64 `json:"messages"`
	LastMessageID int64 `json:"last_message_id"`
}

// Store is the append-only message log behind the REST API.
type Store interface {
	Rooms(ctx context.Context) ([]api.Room, error)
	// FirstRoomID returns ErrNoRoom when the rooms table is empty.
	FirstRoomID(ctx context.Context) (int64, error)
	MessagesAfter(ctx context.Context, roomID, afterID int64, limit int) ([]api.Message, error)
	AppendMessage(ctx context.Context, roomID int64, username, body string) (api.Message, error)
	// EnsureDefaultRoom creates a room called name when none exist and
	// reports whether it did.
	EnsureDefaultRoom(ctx context.Context, name string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
}

// Broadcaster fans a persisted message out to the room's push subscribers.
type Broadcaster interface {
	BroadcastMessage(m api.Message)
}

type BroadcasterFunc func(m api.Message)

func (f BroadcasterFunc) BroadcastMessage(m api.Message) { f(m) }

var now = func() time.Time { return time.Now().UTC() }
