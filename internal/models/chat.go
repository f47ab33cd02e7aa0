package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ChatMessageType mirrors the chat client's message kinds.
type ChatMessageType string

const (
	ChatMessageChat   ChatMessageType = "CHAT"
	ChatMessageJoin   ChatMessageType = "JOIN"
	ChatMessageLeave  ChatMessageType = "LEAVE"
	ChatMessageSystem ChatMessageType = "SYSTEM"
)

// ChatMessage is a message broadcast to a room topic.
type ChatMessage struct {
	ID         string          `db:"id" json:"id"`
	RoomID     string          `db:"room_id" json:"roomId"`
	SenderID   string          `db:"sender_id" json:"senderId"`
	SenderName string          `db:"sender_name" json:"sender"`
	Content    string          `db:"content" json:"content"`
	Type       ChatMessageType `db:"type" json:"type"`
	CreatedAt  time.Time       `db:"created_at" json:"timestamp"`
}

// ChatThreadCreate marks a send that opens a new thread.
const ChatThreadCreate = "THREAD_CREATE"

// RoomRef is a chat room id. Clients send it as a JSON string or number.
type RoomRef string

// UnmarshalJSON accepts "12" and 12 alike.
func (r *RoomRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = RoomRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("room id must be a string or number: %w", err)
	}
	*r = RoomRef(n.String())
	return nil
}

// ChatSendRequest is the body of /app/chat.sendMessage.
type ChatSendRequest struct {
	Message     string  `json:"message" validate:"required,max=4000"`
	ChatRoomID  RoomRef `json:"chatRoomId" validate:"required,max=100"`
	MessageType string  `json:"messageType"`
	RecipientID string  `json:"recipientId,omitempty"`
}

// ChatRoomRequest is the body of /app/chat.joinRoom and /app/chat.leaveRoom.
type ChatRoomRequest struct {
	RoomID RoomRef `json:"roomId" validate:"required,max=100"`
}

// ChatHistory wraps a room's recent messages.
type ChatHistory struct {
	RoomID   string        `json:"roomId"`
	Messages []ChatMessage `json:"messages"`
}
