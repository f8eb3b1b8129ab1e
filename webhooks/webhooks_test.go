package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"chatoverlay/api"
	"chatoverlay/chat"
	"chatoverlay/db"
	"chatoverlay/router"
)

type recorder struct {
	mu   sync.Mutex
	sent []api.Message
}

func (r *recorder) BroadcastMessage(m api.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
}

func (r *recorder) messages() []api.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.Message(nil), r.sent...)
}

func newWebhookServer(t *testing.T, secret string) (*httptest.Server, *recorder) {
	t.Helper()
	ctx := context.Background()
	pool, err := db.InitDB(ctx, db.DatabaseConfig{
		Type:     db.TypeSQLite,
		Database: filepath.Join(t.TempDir(), "chat.db"),
	})
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(pool.Close)

	store, _ := chat.NewStore(pool)
	if _, err := store.EnsureDefaultRoom(ctx, "General"); err != nil {
		t.Fatalf("ensure room: %v", err)
	}

	broadcast := &recorder{}
	wh := NewWebhookHandler(secret, "bot", chat.DefaultLimits(), broadcast)

	r := router.NewRouter("TEST")
	r.Pool = pool
	r.Logger = log.New(io.Discard, "", 0)
	r.Handle("POST /webhooks/messages", wh.MessageWebhook)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, broadcast
}

func postSigned(t *testing.T, url, signature string, payload []byte) (int, api.SendMessageResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out api.SendMessageResponse
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestMessageWebhookSigned(t *testing.T) {
	srv, broadcast := newWebhookServer(t, "s3cret")
	payload := []byte(`{"message":"  deploy finished  "}`)

	status, out := postSigned(t, srv.URL+"/webhooks/messages", Sign("s3cret", payload), payload)
	if status != http.StatusOK || !out.OK {
		t.Fatalf("status = %d, out = %+v", status, out)
	}
	if out.Message.Username != "bot" || out.Message.Message != "deploy finished" {
		t.Errorf("stored message = %+v", out.Message)
	}
	if sent := broadcast.messages(); len(sent) != 1 || sent[0].ID != out.Message.ID {
		t.Errorf("broadcast = %v", sent)
	}
}

func TestMessageWebhookRejectsBadSignature(t *testing.T) {
	srv, broadcast := newWebhookServer(t, "s3cret")
	payload := []byte(`{"message":"hi"}`)

	for _, sig := range []string{"", "sha256=deadbeef", Sign("other", payload)} {
		status, out := postSigned(t, srv.URL+"/webhooks/messages", sig, payload)
		if status != http.StatusUnauthorized || out.Reason != "bad_signature" {
			t.Errorf("signature %q: status = %d, out = %+v", sig, status, out)
		}
	}
	if len(broadcast.messages()) != 0 {
		t.Fatal("rejected webhooks must not broadcast")
	}
}

func TestMessageWebhookWithoutSecret(t *testing.T) {
	srv, _ := newWebhookServer(t, "")
	status, out := postSigned(t, srv.URL+"/webhooks/messages", "", []byte(`{"username":"ci","message":"green"}`))
	if status != http.StatusOK || out.Message.Username != "ci" {
		t.Fatalf("status = %d, out = %+v", status, out)
	}

	status, out = postSigned(t, srv.URL+"/webhooks/messages", "", []byte(`{"message":" "}`))
	if status != http.StatusBadRequest || out.Reason != "empty_message" {
		t.Fatalf("status = %d, out = %+v", status, out)
	}
}
