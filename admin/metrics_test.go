package admin

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"chatoverlay/chat"
	"chatoverlay/db"
	"chatoverlay/router"
)

type staticSubscribers map[string]int

func (s staticSubscribers) Subscribers() map[string]int { return s }

func TestMetricsHandler(t *testing.T) {
	ctx := context.Background()
	pool, err := db.InitDB(ctx, db.DatabaseConfig{
		Type:     db.TypeSQLite,
		Database: filepath.Join(t.TempDir(), "chat.db"),
	})
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	defer pool.Close()

	store, err := chat.NewStore(pool)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	store.EnsureDefaultRoom(ctx, "General")
	roomID, _ := store.FirstRoomID(ctx)
	store.AppendMessage(ctx, roomID, "ana", "hello")
	store.AppendMessage(ctx, roomID, "bob", "hi")

	r := router.NewRouter("TEST")
	r.Pool = pool
	r.Logger = log.New(io.Discard, "", 0)
	r.Handle("GET /admin/metrics", MetricsHandler(staticSubscribers{"1": 2, "7": 1}, time.Now().Add(-time.Hour)))

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out MetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Chat.Rooms != 1 || out.Chat.Messages != 2 {
		t.Errorf("chat stats = %+v", out.Chat)
	}
	if out.Database.Type != db.TypeSQLite || out.Database.SizeBytes <= 0 || out.Database.Size == "" {
		t.Errorf("database health = %+v", out.Database)
	}
	if out.System.WebSocketConnections != 3 {
		t.Errorf("websocket connections = %d, want 3", out.System.WebSocketConnections)
	}
	if out.System.UptimeSeconds < 3599 {
		t.Errorf("uptime = %d", out.System.UptimeSeconds)
	}
	if out.Subscribers["1"] != 2 {
		t.Errorf("subscribers = %v", out.Subscribers)
	}
}
