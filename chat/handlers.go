package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"chatoverlay/api"
	"chatoverlay/appcontext"
)

func HealthHandler(ctx *appcontext.AppContext) {
	ctx.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func RoomsHandler(ctx *appcontext.AppContext) {
	store, err := NewStore(ctx.Pool)
	if err != nil {
		ctx.Logger.Printf("Failed to open store: %v", err)
		http.Error(ctx.Writer, "Failed to list rooms", http.StatusInternalServerError)
		return
	}

	rooms, err := store.Rooms(ctx.Context)
	if err != nil {
		ctx.Logger.Printf("Failed to list rooms: %v", err)
		http.Error(ctx.Writer, "Failed to list rooms", http.StatusInternalServerError)
		return
	}

	ctx.JSON(http.StatusOK, api.RoomsResponse{Rooms: rooms})
}

// GetMessagesHandler serves messages of room_id with an id above after_id.
// A missing or invalid room_id yields an empty page.
func GetMessagesHandler(limits Limits) func(*appcontext.AppContext) {
	return func(ctx *appcontext.AppContext) {
		query := ctx.Request.URL.Query()
		roomID := parseID(query.Get("room_id"))
		afterID := max(parseID(query.Get("after_id")), 0)

		if roomID <= 0 {
			ctx.JSON(http.StatusOK, api.MessagesResponse{Messages: []api.Message{}})
			return
		}

		store, err := NewStore(ctx.Pool)
		if err != nil {
			ctx.Logger.Printf("Failed to open store: %v", err)
			http.Error(ctx.Writer, "Failed to get messages", http.StatusInternalServerError)
			return
		}

		messages, err := store.MessagesAfter(ctx.Context, roomID, afterID, limits.PageSize)
		if err != nil {
			ctx.Logger.Printf("Failed to get messages: %v", err)
			http.Error(ctx.Writer, "Failed to get messages", http.StatusInternalServerError)
			return
		}

		ctx.JSON(http.StatusOK, api.MessagesResponse{Messages: messages})
	}
}

type sendPayload struct {
	RoomID   json.RawMessage `json:"room_id"`
	Username string          `json:"username"`
	Message  string          `json:"message"`
}

// SendMessageHandler persists a message and hands it to b once stored.
func SendMessageHandler(b Broadcaster, limits Limits) func(*appcontext.AppContext) {
	return func(ctx *appcontext.AppContext) {
		var req sendPayload
		if err := json.NewDecoder(ctx.Request.Body).Decode(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, api.SendMessageResponse{Reason: "invalid_json"})
			return
		}

		body := Truncate(strings.TrimSpace(req.Message), limits.MaxMessageLength)
		if body == "" {
			ctx.JSON(http.StatusBadRequest, api.SendMessageResponse{Reason: "empty_message"})
			return
		}
		username := Truncate(strings.TrimSpace(req.Username), limits.MaxUsernameLength)
		if username == "" {
			username = limits.DefaultUsername
		}

		store, err := NewStore(ctx.Pool)
		if err != nil {
			ctx.Logger.Printf("Failed to open store: %v", err)
			ctx.JSON(http.StatusInternalServerError, api.SendMessageResponse{Reason: "store_unavailable"})
			return
		}

		msg, err := Append(ctx.Context, store, rawID(req.RoomID), username, body)
		if errors.Is(err, ErrNoRoom) {
			ctx.JSON(http.StatusInternalServerError, api.SendMessageResponse{Reason: "no_room"})
			return
		}
		if err != nil {
			ctx.Logger.Printf("Failed to store message: %v", err)
			ctx.JSON(http.StatusInternalServerError, api.SendMessageResponse{Reason: "store_failed"})
			return
		}

		if b != nil {
			b.BroadcastMessage(msg)
		}
		ctx.JSON(http.StatusOK, api.SendMessageResponse{OK: true, Message: &msg})
	}
}

// Truncate cuts s to at most n runes. n <= 0 disables the limit.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// rawID accepts a room id sent either as a JSON number or a string.
func rawID(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseID(s)
	}
	return 0
}
