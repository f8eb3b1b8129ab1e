package chat

import (
	"context"

	"chatoverlay/api"
)

// Append stores a message in roomID, falling back to the first room when
// roomID is not positive. Body and username must already be normalized.
func Append(ctx context.Context, store Store, roomID int64, username, body string) (api.Message, error) {
	if roomID <= 0 {
		first, err := store.FirstRoomID(ctx)
		if err != nil {
			return api.Message{}, err
		}
		roomID = first
	}
	return store.AppendMessage(ctx, roomID, username, body)
}
