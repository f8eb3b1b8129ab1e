package websocket

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"chatoverlay/api"

	"github.com/google/uuid"
)

// Hub fans chat events out to the websocket clients that joined a room.
// All membership changes go through Run's goroutine.
type Hub struct {
	rooms      map[string]map[*Client]bool
	clients    map[*Client]bool
	broadcast  chan roomFrame
	register   chan *Client
	unregister chan *Client
	join       chan membership
	stats      chan chan map[string]int
	done       chan struct{}
	logger     *log.Logger
}

type roomFrame struct {
	room string
	data []byte
}

type membership struct {
	client *Client
	room   string
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan roomFrame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		stats:      make(chan chan map[string]int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Printf("Client %s connected. Total: %d", client.id, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Printf("Client %s disconnected. Total: %d", client.id, len(h.clients))
			}

		case m := <-h.join:
			if _, ok := h.clients[m.client]; !ok {
				continue
			}
			// one room per connection, mirroring the single-room client
			if m.client.room != "" {
				delete(h.rooms[m.client.room], m.client)
			}
			if h.rooms[m.room] == nil {
				h.rooms[m.room] = make(map[*Client]bool)
			}
			h.rooms[m.room][m.client] = true
			m.client.room = m.room
			h.logger.Printf("Client %s joined room %s", m.client.id, m.room)

		case frame := <-h.broadcast:
			for client := range h.rooms[frame.room] {
				select {
				case client.send <- frame.data:
				default:
					h.drop(client)
				}
			}

		case reply := <-h.stats:
			counts := make(map[string]int, len(h.rooms))
			for room, members := range h.rooms {
				if len(members) > 0 {
					counts[room] = len(members)
				}
			}
			reply <- counts
		}
	}
}

func (h *Hub) drop(client *Client) {
	if client.room != "" {
		delete(h.rooms[client.room], client)
		if len(h.rooms[client.room]) == 0 {
			delete(h.rooms, client.room)
		}
	}
	delete(h.clients, client)
	close(client.send)
}

// BroadcastMessage pushes a stored message to every subscriber of its room.
func (h *Hub) BroadcastMessage(m api.Message) {
	data, err := json.Marshal(api.Event{Event: api.EventNew, Data: m})
	if err != nil {
		h.logger.Printf("Failed to encode message %d: %v", m.ID, err)
		return
	}
	select {
	case h.broadcast <- roomFrame{room: strconv.FormatInt(m.RoomID, 10), data: data}:
	case <-h.done:
	}
}

// Subscribers returns the number of live subscribers per room.
func (h *Hub) Subscribers() map[string]int {
	reply := make(chan map[string]int, 1)
	select {
	case h.stats <- reply:
		return <-reply
	case <-h.done:
		return map[string]int{}
	}
}

func (h *Hub) joinRoom(client *Client, room string) {
	room = strings.TrimSpace(room)
	if room == "" {
		return
	}
	select {
	case h.join <- membership{client: client, room: room}:
	case <-h.done:
	}
}

func newClientID() string {
	return uuid.New().String()[:8]
}
