package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"chatoverlay/api"
	"chatoverlay/appcontext"
	"chatoverlay/chat"
)

const SignatureHeader = "X-Webhook-Signature"

type WebhookHandler struct {
	Secret      string
	Username    string
	Limits      chat.Limits
	Broadcaster chat.Broadcaster
}

type MessagePayload struct {
	RoomID   int64  `json:"room_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

func NewWebhookHandler(secret, username string, limits chat.Limits, b chat.Broadcaster) *WebhookHandler {
	return &WebhookHandler{
		Secret:      secret,
		Username:    username,
		Limits:      limits,
		Broadcaster: b,
	}
}

// Sign returns the signature header value for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (wh *WebhookHandler) VerifySignature(payload []byte, signature string) bool {
	if wh.Secret == "" {
		return true // Skip verification if no secret configured
	}
	return hmac.Equal([]byte(signature), []byte(Sign(wh.Secret, payload)))
}

// MessageWebhook posts a message on behalf of an integration.
func (wh *WebhookHandler) MessageWebhook(ctx *appcontext.AppContext) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 64<<10))
	if err != nil {
		ctx.Writer.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := ctx.Request.Header.Get(SignatureHeader)
	if !wh.VerifySignature(body, signature) {
		ctx.JSON(http.StatusUnauthorized, api.SendMessageResponse{Reason: "bad_signature"})
		return
	}

	var payload MessagePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		ctx.JSON(http.StatusBadRequest, api.SendMessageResponse{Reason: "invalid_json"})
		return
	}

	text := chat.Truncate(strings.TrimSpace(payload.Message), wh.Limits.MaxMessageLength)
	if text == "" {
		ctx.JSON(http.StatusBadRequest, api.SendMessageResponse{Reason: "empty_message"})
		return
	}
	username := chat.Truncate(strings.TrimSpace(payload.Username), wh.Limits.MaxUsernameLength)
	if username == "" {
		username = wh.Username
	}

	store, err := chat.NewStore(ctx.Pool)
	if err != nil {
		ctx.Logger.Printf("Failed to open store: %v", err)
		ctx.JSON(http.StatusInternalServerError, api.SendMessageResponse{Reason: "store_unavailable"})
		return
	}

	msg, err := chat.Append(ctx.Context, store, payload.RoomID, username, text)
	if err != nil {
		ctx.Logger.Printf("Failed to store webhook message: %v", err)
		ctx.JSON(http.StatusInternalServerError, api.SendMessageResponse{Reason: "store_failed"})
		return
	}

	ctx.Logger.Printf("Webhook message %d stored in room %d", msg.ID, msg.RoomID)
	if wh.Broadcaster != nil {
		wh.Broadcaster.BroadcastMessage(msg)
	}
	ctx.JSON(http.StatusOK, api.SendMessageResponse{OK: true, Message: &msg})
}
