package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/epathshala/portal-api/internal/models"
)

// ChatRepository stores chat room history.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository constructs the repository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Save appends a message to its room.
func (r *ChatRepository) Save(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO chat_messages (id, room_id, sender_id, sender_name, content, type, created_at)
		VALUES (:id, :room_id, :sender_id, :sender_name, :content, :type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("save chat message: %w", err)
	}
	return nil
}

// ListByRoom returns the most recent messages of a room in chronological order.
func (r *ChatRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, room_id, sender_id, sender_name, content, type, created_at FROM (
		SELECT id, room_id, sender_id, sender_name, content, type, created_at
		FROM chat_messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT $2
	) recent ORDER BY created_at ASC`
	items := []models.ChatMessage{}
	if err := r.db.SelectContext(ctx, &items, query, roomID, limit); err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return items, nil
}
