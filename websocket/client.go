package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"chatoverlay/api"
	"chatoverlay/appcontext"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string // owned by the hub goroutine
}

// WebSocketHandler upgrades the request and attaches the connection to hub.
// allowedOrigin "*" accepts any origin.
func WebSocketHandler(hub *Hub, allowedOrigin string) func(*appcontext.AppContext) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
		},
	}

	return func(ctx *appcontext.AppContext) {
		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			ctx.Logger.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			id:   newClientID(),
			hub:  hub,
			conn: conn,
			send: make(chan []byte, 256),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		var wg conc.WaitGroup
		wg.Go(client.writePump)
		wg.Go(client.readPump)
		wg.Wait()
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Printf("WebSocket error: %v", err)
			}
			break
		}

		var ev api.InboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Event == api.EventJoin {
			c.hub.joinRoom(c, roomFromPayload(ev.Data))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// roomFromPayload accepts the room id as a JSON string or number.
func roomFromPayload(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
