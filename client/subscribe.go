package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatoverlay/api"

	"github.com/gorilla/websocket"
)

// Dialer opens websocket connections; *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

func defaultDialer() Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
}

// SocketURL is the websocket endpoint under the client's base.
func (c *Client) SocketURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Subscribe joins roomID's channel and hands every broadcast message to
// deliver until the connection drops or ctx is cancelled. Cancellation
// returns nil; a dropped connection returns an error.
func (c *Client) Subscribe(ctx context.Context, roomID int64, deliver func(api.Message)) error {
	conn, _, err := c.dialer.DialContext(ctx, c.SocketURL(), nil)
	if err != nil {
		return fmt.Errorf("push subscription dial failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	join := api.Event{Event: api.EventJoin, Data: strconv.FormatInt(roomID, 10)}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("push subscription join failed: %w", err)
	}

	for {
		var ev api.InboundEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("push subscription dropped: %w", err)
		}
		if ev.Event != api.EventNew {
			continue
		}
		var m api.Message
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			continue
		}
		deliver(m)
	}
}
