package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/service"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

// Application destinations served by the chat handlers.
const (
	DestSendMessage = AppPrefix + "chat.sendMessage"
	DestJoinRoom    = AppPrefix + "chat.joinRoom"
	DestLeaveRoom   = AppPrefix + "chat.leaveRoom"
	DestAddUser     = AppPrefix + "chat.addUser"
	DestTest        = AppPrefix + "test"

	TopicTest = "/topic/test"
)

// ChatBackend stores chat messages and builds room events.
type ChatBackend interface {
	SendMessage(ctx context.Context, sender *models.JWTClaims, req models.ChatSendRequest) (*models.ChatMessage, error)
	JoinRoom(ctx context.Context, sender *models.JWTClaims, req models.ChatRoomRequest) (*models.ChatMessage, error)
	LeaveRoom(ctx context.Context, sender *models.JWTClaims, req models.ChatRoomRequest) (*models.ChatMessage, error)
	AddUser(sender *models.JWTClaims) (*models.ChatMessage, error)
}

// RegisterChatHandlers mounts the chat and echo destinations on b.
func RegisterChatHandlers(b *Broker, chat ChatBackend) {
	b.Handle(DestSendMessage, func(ctx context.Context, msg *Inbound) error {
		var req models.ChatSendRequest
		if err := decodeBody(msg.Body, &req); err != nil {
			return err
		}
		saved, err := chat.SendMessage(ctx, msg.Client.Claims(), req)
		if err != nil {
			return err
		}
		return b.Publish(service.ChatRoomTopic(saved.RoomID), saved)
	})

	b.Handle(DestJoinRoom, func(ctx context.Context, msg *Inbound) error {
		var req models.ChatRoomRequest
		if err := decodeBody(msg.Body, &req); err != nil {
			return err
		}
		joined, err := chat.JoinRoom(ctx, msg.Client.Claims(), req)
		if err != nil {
			return err
		}
		b.sendToClient(msg.Client, "/queue/room."+joined.RoomID, map[string]string{
			"type":    string(models.ChatMessageJoin),
			"roomId":  joined.RoomID,
			"message": "Joined room " + joined.RoomID,
		})
		return b.Publish(service.ChatRoomTopic(joined.RoomID), joined)
	})

	b.Handle(DestLeaveRoom, func(ctx context.Context, msg *Inbound) error {
		var req models.ChatRoomRequest
		if err := decodeBody(msg.Body, &req); err != nil {
			return err
		}
		left, err := chat.LeaveRoom(ctx, msg.Client.Claims(), req)
		if err != nil {
			return err
		}
		return b.Publish(service.ChatRoomTopic(left.RoomID), left)
	})

	b.Handle(DestAddUser, func(_ context.Context, msg *Inbound) error {
		greeting, err := chat.AddUser(msg.Client.Claims())
		if err != nil {
			return err
		}
		return b.Publish(service.DestinationPublic, greeting)
	})

	b.Handle(DestTest, func(_ context.Context, msg *Inbound) error {
		var payload map[string]interface{}
		if err := decodeBody(msg.Body, &payload); err != nil {
			return err
		}
		return b.Publish(TopicTest, map[string]interface{}{
			"message":   fmt.Sprintf("Server received: %v", payload["message"]),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"status":    "success",
		})
	})
}

func decodeBody(body []byte, dest interface{}) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return appErrors.Validation(err, "message body must be JSON")
	}
	return nil
}
