package chat

import (
	"context"
	"errors"
	"fmt"

	"chatoverlay/api"
	"chatoverlay/db"

	"github.com/jackc/pgx/v5"
)

type postgresStore struct {
	pool *db.DBPool
}

func (s *postgresStore) Rooms(ctx context.Context) ([]api.Room, error) {
	rows, err := s.pool.PgxPool.Query(ctx, `SELECT id, name FROM chat_rooms ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []api.Room{}
	for rows.Next() {
		var room api.Room
		if err := rows.Scan(&room.ID, &room.Name); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *postgresStore) FirstRoomID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.PgxPool.QueryRow(ctx, `SELECT id FROM chat_rooms ORDER BY id LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoRoom
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query first room: %w", err)
	}
	return id, nil
}

func (s *postgresStore) MessagesAfter(ctx context.Context, roomID, afterID int64, limit int) ([]api.Message, error) {
	query := `SELECT id, room_id, username, message, created_at
              FROM chat_messages
              WHERE room_id = $1 AND id > $2
              ORDER BY id ASC
              LIMIT $3`

	rows, err := s.pool.PgxPool.Query(ctx, query, roomID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []api.Message{}
	for rows.Next() {
		var msg api.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Username, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func (s *postgresStore) AppendMessage(ctx context.Context, roomID int64, username, body string) (api.Message, error) {
	msg := api.Message{
		RoomID:    roomID,
		Username:  username,
		Message:   body,
		CreatedAt: now().Format(TimeLayout),
	}
	err := s.pool.PgxPool.QueryRow(ctx,
		`INSERT INTO chat_messages (room_id, username, message, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		roomID, username, body, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		return api.Message{}, fmt.Errorf("failed to store message: %w", err)
	}
	return msg, nil
}

func (s *postgresStore) EnsureDefaultRoom(ctx context.Context, name string) (bool, error) {
	tx, err := s.pool.PgxPool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_rooms)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to count rooms: %w", err)
	}
	if exists {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `INSERT INTO chat_rooms (name) VALUES ($1)`, name); err != nil {
		return false, fmt.Errorf("failed to create room: %w", err)
	}
	return true, tx.Commit(ctx)
}

func (s *postgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	query := `SELECT
                (SELECT COUNT(*) FROM chat_rooms),
                (SELECT COUNT(*) FROM chat_messages),
                (SELECT COALESCE(MAX(id), 0) FROM chat_messages)`
	if err := s.pool.PgxPool.QueryRow(ctx, query).Scan(&st.Rooms, &st.Messages, &st.LastMessageID); err != nil {
		return Stats{}, fmt.Errorf("failed to collect stats: %w", err)
	}
	return st, nil
}
