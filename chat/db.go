package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatoverlay/api"
	"chatoverlay/db"
)

// NewStore picks the Store implementation matching the pool's backend.
func NewStore(pool *db.DBPool) (Store, error) {
	if pool == nil {
		return nil, errors.New("database not available")
	}
	switch pool.Type {
	case db.TypeSQLite:
		return &sqliteStore{pool: pool}, nil
	case db.TypePostgres:
		return &postgresStore{pool: pool}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", pool.Type)
	}
}

type sqliteStore struct {
	pool *db.DBPool
}

func (s *sqliteStore) Rooms(ctx context.Context) ([]api.Room, error) {
	readTx, err := s.pool.GetReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer readTx.Rollback()

	rows, err := readTx.QueryContext(ctx, `SELECT id, name FROM chat_rooms ORDER BY name, id`)
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
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}

	return rooms, readTx.Commit()
}

func (s *sqliteStore) FirstRoomID(ctx context.Context) (int64, error) {
	readTx, err := s.pool.GetReadTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer readTx.Rollback()

	var id int64
	err = readTx.QueryRowContext(ctx, `SELECT id FROM chat_rooms ORDER BY id LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoRoom
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query first room: %w", err)
	}
	return id, readTx.Commit()
}

func (s *sqliteStore) MessagesAfter(ctx context.Context, roomID, afterID int64, limit int) ([]api.Message, error) {
	readTx, err := s.pool.GetReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer readTx.Rollback()

	query := `SELECT id, room_id, username, message, created_at
              FROM chat_messages
              WHERE room_id = ? AND id > ?
              ORDER BY id ASC
              LIMIT ?`

	rows, err := readTx.QueryContext(ctx, query, roomID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []api.Message{}
	for rows.Next() {
		var msg api.Message
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.Username,
			&msg.Message,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, readTx.Commit()
}

func (s *sqliteStore) AppendMessage(ctx context.Context, roomID int64, username, body string) (api.Message, error) {
	writeTx, err := s.pool.GetWriteTx(ctx)
	if err != nil {
		return api.Message{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer writeTx.Rollback()

	createdAt := now().Format(TimeLayout)
	result, err := writeTx.ExecContext(ctx,
		`INSERT INTO chat_messages (room_id, username, message, created_at) VALUES (?, ?, ?, ?)`,
		roomID, username, body, createdAt)
	if err != nil {
		return api.Message{}, fmt.Errorf("failed to store message: %w", err)
	}

	messageID, err := result.LastInsertId()
	if err != nil {
		return api.Message{}, fmt.Errorf("failed to get message ID: %w", err)
	}

	if err = writeTx.Commit(); err != nil {
		return api.Message{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return api.Message{
		ID:        messageID,
		RoomID:    roomID,
		Username:  username,
		Message:   body,
		CreatedAt: createdAt,
	}, nil
}

func (s *sqliteStore) EnsureDefaultRoom(ctx context.Context, name string) (bool, error) {
	writeTx, err := s.pool.GetWriteTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer writeTx.Rollback()

	var count int64
	if err := writeTx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_rooms`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count rooms: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err := writeTx.ExecContext(ctx, `INSERT INTO chat_rooms (name) VALUES (?)`, name); err != nil {
		return false, fmt.Errorf("failed to create room: %w", err)
	}
	return true, writeTx.Commit()
}

func (s *sqliteStore) Stats(ctx context.Context) (Stats, error) {
	readTx, err := s.pool.GetReadTx(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer readTx.Rollback()

	var st Stats
	query := `SELECT
                (SELECT COUNT(*) FROM chat_rooms),
                (SELECT COUNT(*) FROM chat_messages),
                (SELECT COALESCE(MAX(id), 0) FROM chat_messages)`
	if err := readTx.QueryRowContext(ctx, query).Scan(&st.Rooms, &st.Messages, &st.LastMessageID); err != nil {
		return Stats{}, fmt.Errorf("failed to collect stats: %w", err)
	}
	return st, readTx.Commit()
}
