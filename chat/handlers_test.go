package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"chatoverlay/api"
	"chatoverlay/db"
	"chatoverlay/router"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []api.Message
}

func (r *recordingBroadcaster) BroadcastMessage(m api.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
}

func (r *recordingBroadcaster) messages() []api.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.Message(nil), r.sent...)
}

func openTestPool(t *testing.T) *db.DBPool {
	t.Helper()
	pool, err := db.InitDB(context.Background(), db.DatabaseConfig{
		Type:     db.TypeSQLite,
		Database: filepath.Join(t.TempDir(), "chat.db"),
	})
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func newTestServer(t *testing.T) (*httptest.Server, Store, *recordingBroadcaster) {
	t.Helper()
	pool := openTestPool(t)
	store, err := NewStore(pool)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.EnsureDefaultRoom(context.Background(), "General"); err != nil {
		t.Fatalf("ensure room: %v", err)
	}

	b := &recordingBroadcaster{}
	r := router.NewRouter("TEST")
	r.Pool = pool
	r.Logger = log.New(io.Discard, "", 0)
	r.Handle("GET /health", HealthHandler)
	r.Handle("GET /rooms", RoomsHandler)
	r.Handle("GET /messages", GetMessagesHandler(DefaultLimits()))
	r.Handle("POST /messages", SendMessageHandler(b, DefaultLimits()))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, b
}

func postJSON(t *testing.T, url string, body any) (*http.Response, api.SendMessageResponse) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out api.SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, out
}

func getMessages(t *testing.T, url string) []api.Message {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out api.MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.Messages
}

func TestRoundTrip(t *testing.T) {
	srv, store, b := newTestServer(t)

	roomID, err := store.FirstRoomID(context.Background())
	if err != nil {
		t.Fatalf("first room: %v", err)
	}

	resp, out := postJSON(t, srv.URL+"/messages", map[string]any{
		"room_id":  roomID,
		"username": "ana",
		"message":  "hello there",
	})
	if resp.StatusCode != http.StatusOK || !out.OK || out.Message == nil {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, out)
	}
	sent := *out.Message

	got := getMessages(t, srv.URL+"/messages?room_id="+itoa(roomID)+"&after_id=0")
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0] != sent {
		t.Fatalf("round trip mismatch: posted %+v, fetched %+v", sent, got[0])
	}

	if after := getMessages(t, srv.URL+"/messages?room_id="+itoa(roomID)+"&after_id="+itoa(sent.ID)); len(after) != 0 {
		t.Fatalf("expected nothing after %d, got %v", sent.ID, after)
	}

	broadcast := b.messages()
	if len(broadcast) != 1 || broadcast[0] != sent {
		t.Fatalf("broadcast = %v, want [%v]", broadcast, sent)
	}
}

func TestMessagesAscendingAfterID(t *testing.T) {
	srv, store, _ := newTestServer(t)
	ctx := context.Background()
	roomID, _ := store.FirstRoomID(ctx)

	var ids []int64
	for _, body := range []string{"one", "two", "three"} {
		m, err := store.AppendMessage(ctx, roomID, "ana", body)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, m.ID)
	}

	got := getMessages(t, srv.URL+"/messages?room_id="+itoa(roomID)+"&after_id="+itoa(ids[0]))
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != ids[1] || got[1].ID != ids[2] {
		t.Fatalf("unexpected order: %v", got)
	}
	if got[0].ID >= got[1].ID {
		t.Fatalf("ids not increasing: %d, %d", got[0].ID, got[1].ID)
	}
}

func TestSendNormalizesInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	long := strings.Repeat("ă", 2100)
	_, out := postJSON(t, srv.URL+"/messages", map[string]any{
		"username": "   ",
		"message":  "  " + long + "  ",
	})
	if !out.OK {
		t.Fatalf("expected ok, got %+v", out)
	}
	if out.Message.Username != "user" {
		t.Errorf("username = %q, want user", out.Message.Username)
	}
	if n := len([]rune(out.Message.Message)); n != 2000 {
		t.Errorf("message length = %d runes, want 2000", n)
	}
	if out.Message.RoomID <= 0 {
		t.Errorf("room fallback did not apply: %+v", out.Message)
	}

	stamp := regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	if !stamp.MatchString(out.Message.CreatedAt) {
		t.Errorf("created_at = %q", out.Message.CreatedAt)
	}
}

func TestSendAcceptsStringRoomID(t *testing.T) {
	srv, store, _ := newTestServer(t)
	roomID, _ := store.FirstRoomID(context.Background())

	_, out := postJSON(t, srv.URL+"/messages", map[string]any{
		"room_id":  itoa(roomID),
		"username": "bob",
		"message":  "hi",
	})
	if !out.OK || out.Message.RoomID != roomID {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestSendEmptyMessage(t *testing.T) {
	srv, _, b := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/messages", map[string]any{"username": "ana", "message": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if out.OK || out.Reason != "empty_message" {
		t.Fatalf("unexpected response %+v", out)
	}
	if len(b.messages()) != 0 {
		t.Fatal("empty message must not be broadcast")
	}
}

func TestMessagesWithoutRoom(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/messages")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != `{"messages":[]}` {
		t.Fatalf("body = %s", body)
	}
}

func TestRoomsAndHealth(t *testing.T) {
	srv, store, _ := newTestServer(t)

	created, err := store.EnsureDefaultRoom(context.Background(), "Other")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if created {
		t.Fatal("default room must only be created when none exist")
	}

	resp, err := http.Get(srv.URL + "/rooms")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var rooms api.RoomsResponse
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rooms.Rooms) != 1 || rooms.Rooms[0].Name != "General" {
		t.Fatalf("rooms = %+v", rooms.Rooms)
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer health.Body.Close()
	body, _ := io.ReadAll(health.Body)
	if strings.TrimSpace(string(body)) != `{"ok":true}` {
		t.Fatalf("health body = %s", body)
	}
}

func TestAppendWithoutRooms(t *testing.T) {
	store, err := NewStore(openTestPool(t))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := Append(context.Background(), store, 0, "ana", "hi"); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("err = %v, want ErrNoRoom", err)
	}
}

func TestStats(t *testing.T) {
	store, err := NewStore(openTestPool(t))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	store.EnsureDefaultRoom(ctx, "General")
	roomID, _ := store.FirstRoomID(ctx)
	last, _ := store.AppendMessage(ctx, roomID, "ana", "one")

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Rooms: 1, Messages: 1, LastMessageID: last.ID}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"ăîșțâ", 2, "ăî"},
		{"hello", 0, "hello"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestStressChat(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	send := func(_ context.Context, username, _ string) error {
		mu.Lock()
		defer mu.Unlock()
		seen[username]++
		if username == "stress-0" {
			return errors.New("boom")
		}
		return nil
	}

	res := StressChat(context.Background(), send, 4, 5)
	if res.Total != 20 || res.Success != 15 || res.Failed != 5 {
		t.Fatalf("result = %+v", res)
	}
	if len(seen) != 4 || seen["stress-3"] != 5 {
		t.Fatalf("seen = %v", seen)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
