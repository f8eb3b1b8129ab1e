// Package api holds the wire types shared by the chat backend and the overlay client.
package api

import "encoding/json"

// Message is a single chat line as stored and broadcast by the backend.
// ID is server-assigned and strictly increasing per room; zero means the
// payload carried no id.
type Message struct {
	ID        int64  `json:"id"`
	RoomID    int64  `json:"room_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type Room struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

type SendMessageRequest struct {
	RoomID   int64  `json:"room_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type SendMessageResponse struct {
	OK      bool     `json:"ok"`
	Reason  string   `json:"reason,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// Push channel event names.
const (
	EventJoin = "chat:join"
	EventNew  = "chat:new"
)

// Event is the frame exchanged over the websocket push channel.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundEvent is Event with a deferred payload, used when decoding.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
